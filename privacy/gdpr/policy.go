package gdpr

import (
	"fmt"

	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/vendorconsent"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// Signal is the tri-state "does GDPR apply" flag supplied by the consent management platform.
type Signal int

const (
	SignalAmbiguous Signal = -1
	SignalNo        Signal = 0
	SignalYes       Signal = 1
)

// SignalFromApplies converts the optional gdprApplies flag of a consent object into a Signal.
func SignalFromApplies(applies *bool) Signal {
	if applies == nil {
		return SignalAmbiguous
	}
	if *applies {
		return SignalYes
	}
	return SignalNo
}

// Policy represents the GDPR regulation for an outbound exchange request.
type Policy struct {
	Signal  Signal
	Consent string
}

// MacroValue renders the signal for {{.GDPR}} url macros. Ambiguous renders empty.
func (p Policy) MacroValue() string {
	switch p.Signal {
	case SignalYes:
		return "1"
	case SignalNo:
		return "0"
	}
	return ""
}

// QueryValue renders the signal as the "true"/"false" query value the exchange expects.
// Ambiguous renders empty so the parameter is skipped.
func (p Policy) QueryValue() string {
	switch p.Signal {
	case SignalYes:
		return "true"
	case SignalNo:
		return "false"
	}
	return ""
}

// Regs returns the OpenRTB regs object carrying the signal, or nil when the signal is ambiguous.
func (p Policy) Regs() *openrtb2.Regs {
	if p.Signal == SignalAmbiguous {
		return nil
	}
	gdpr := int8(p.Signal)
	return &openrtb2.Regs{GDPR: &gdpr}
}

// User returns the OpenRTB user object carrying the consent string, or nil when there is none.
func (p Policy) User() *openrtb2.User {
	if p.Consent == "" {
		return nil
	}
	return &openrtb2.User{Consent: p.Consent}
}

// ValidateConsent returns an ErrorMalformedConsent if the policy's consent string is set
// but cannot be parsed as a TCF consent string.
func (p Policy) ValidateConsent() error {
	if p.Consent == "" {
		return nil
	}

	parsedConsent, err := vendorconsent.ParseString(p.Consent)
	if err != nil {
		return &ErrorMalformedConsent{Consent: p.Consent, Cause: err}
	}
	if err := validateVersions(parsedConsent); err != nil {
		return &ErrorMalformedConsent{Consent: p.Consent, Cause: err}
	}
	return nil
}

// validateVersions ensures that certain version fields in the consent string contain valid values.
func validateVersions(pc api.VendorConsents) error {
	version := pc.Version()
	if version != 1 && version != 2 {
		return fmt.Errorf("invalid encoding format version: %d", version)
	}
	policyVersion := pc.TCFPolicyVersion()
	if policyVersion > 4 {
		return fmt.Errorf("invalid TCF policy version: %d", policyVersion)
	}
	return nil
}

// ErrorMalformedConsent is returned when the consent string argument is nonsensical.
type ErrorMalformedConsent struct {
	Consent string
	Cause   error
}

func (e *ErrorMalformedConsent) Error() string {
	return "malformed consent string " + e.Consent + ": " + e.Cause.Error()
}
