package exchange

import (
	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/adapters/triplelift"
	"github.com/prebid/header-adapters/openrtb_ext"
)

// Adapter registration is kept in this separate file for ease of use and to aid
// in resolving merge conflicts.

func newAdapterBuilders() map[openrtb_ext.BidderName]adapters.Builder {
	return map[openrtb_ext.BidderName]adapters.Builder{
		openrtb_ext.BidderTriplelift: triplelift.Builder,
	}
}
