package adapters

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
)

func TestSyncerGetUserSyncs(t *testing.T) {
	temp := template.Must(template.New("sync-template").Parse("https://eb2.3lift.com/sync?gdpr={{.GDPR}}&cmp_cs={{.GDPRConsent}}"))
	applies := true

	testCases := []struct {
		description   string
		syncTypes     []SyncType
		options       SyncOptions
		consent       *GDPRConsent
		expectedSyncs []UserSync
	}{
		{
			description:   "iframe-preferred",
			syncTypes:     []SyncType{SyncTypeIFrame, SyncTypeImage},
			options:       SyncOptions{IFrameEnabled: true, PixelEnabled: true},
			expectedSyncs: []UserSync{{Type: SyncTypeIFrame, URL: "https://eb2.3lift.com/sync?gdpr=&cmp_cs="}},
		},
		{
			description:   "image-fallback",
			syncTypes:     []SyncType{SyncTypeIFrame, SyncTypeImage},
			options:       SyncOptions{PixelEnabled: true},
			expectedSyncs: []UserSync{{Type: SyncTypeImage, URL: "https://eb2.3lift.com/sync?gdpr=&cmp_cs="}},
		},
		{
			description: "nothing-allowed",
			syncTypes:   []SyncType{SyncTypeIFrame, SyncTypeImage},
			options:     SyncOptions{},
		},
		{
			description: "image-only-syncer",
			syncTypes:   []SyncType{SyncTypeImage},
			options:     SyncOptions{IFrameEnabled: true},
		},
		{
			description:   "consent-macros",
			syncTypes:     []SyncType{SyncTypeIFrame},
			options:       SyncOptions{IFrameEnabled: true},
			consent:       &GDPRConsent{ConsentString: "BOONm0NOONma-AAAARh7", GDPRApplies: &applies},
			expectedSyncs: []UserSync{{Type: SyncTypeIFrame, URL: "https://eb2.3lift.com/sync?gdpr=1&cmp_cs=BOONm0NOONma-AAAARh7"}},
		},
	}

	for _, test := range testCases {
		syncer := NewSyncer("triplelift", 28, temp, test.syncTypes...)
		syncs, err := syncer.GetUserSyncs(test.options, test.consent)

		assert.NoError(t, err, test.description)
		assert.Equal(t, test.expectedSyncs, syncs, test.description)
	}
}

func TestSyncerWithoutTemplate(t *testing.T) {
	syncer := NewSyncer("triplelift", 28, nil, SyncTypeIFrame)

	_, err := syncer.GetUserSyncs(SyncOptions{IFrameEnabled: true}, nil)
	assert.EqualError(t, err, "no user sync url configured for triplelift")
	assert.EqualValues(t, 28, syncer.GDPRVendorID())
}
