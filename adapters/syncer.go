package adapters

import (
	"errors"
	"net/url"
	"text/template"

	"github.com/prebid/header-adapters/macros"
	"github.com/prebid/header-adapters/privacy/gdpr"
)

type SyncType string

const (
	SyncTypeIFrame SyncType = "iframe"
	SyncTypeImage  SyncType = "image"
)

// Syncer resolves a bidder's user sync url template against the consent of one auction.
type Syncer struct {
	familyName   string
	gdprVendorID uint16
	urlTemplate  *template.Template
	syncTypes    []SyncType
}

// NewSyncer builds a Syncer supporting the given sync types, most preferred first.
func NewSyncer(familyName string, vendorID uint16, urlTemplate *template.Template, syncTypes ...SyncType) *Syncer {
	return &Syncer{
		familyName:   familyName,
		gdprVendorID: vendorID,
		urlTemplate:  urlTemplate,
		syncTypes:    syncTypes,
	}
}

// GetUserSyncs returns at most one sync, using the first supported type the publisher allows.
// No syncs and no error are returned when none of the types is allowed.
func (s *Syncer) GetUserSyncs(syncOptions SyncOptions, consent *GDPRConsent) ([]UserSync, error) {
	syncType, ok := s.chooseSyncType(syncOptions)
	if !ok {
		return nil, nil
	}
	if s.urlTemplate == nil {
		return nil, errors.New("no user sync url configured for " + s.familyName)
	}

	policy := gdpr.Policy{Signal: gdpr.SignalAmbiguous}
	if consent != nil {
		policy = gdpr.Policy{
			Signal:  gdpr.SignalFromApplies(consent.GDPRApplies),
			Consent: consent.ConsentString,
		}
	}

	syncURL, err := macros.ResolveMacros(s.urlTemplate, macros.UserSyncTemplateParams{
		GDPR:        policy.MacroValue(),
		GDPRConsent: url.QueryEscape(policy.Consent),
	})
	if err != nil {
		return nil, err
	}

	return []UserSync{{Type: syncType, URL: syncURL}}, nil
}

func (s *Syncer) chooseSyncType(syncOptions SyncOptions) (SyncType, bool) {
	for _, syncType := range s.syncTypes {
		switch syncType {
		case SyncTypeIFrame:
			if syncOptions.IFrameEnabled {
				return syncType, true
			}
		case SyncTypeImage:
			if syncOptions.PixelEnabled {
				return syncType, true
			}
		}
	}
	return "", false
}

// GDPRVendorID is the bidder's id on the IAB global vendor list.
func (s *Syncer) GDPRVendorID() uint16 {
	return s.gdprVendorID
}
