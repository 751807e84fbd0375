package exchange

import (
	"fmt"
	"net/http"

	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/metrics"
	"github.com/prebid/header-adapters/openrtb_ext"
)

// BuildAdapters builds every enabled adapter of the host config and wraps each one for the given client.
// The params validator is shared by all adapters.
func BuildAdapters(client *http.Client, cfg *config.Configuration, me metrics.MetricsEngine, validator openrtb_ext.BidderParamValidator) (map[openrtb_ext.BidderName]*BidderAdapter, []error) {
	bidders, errs := buildBidders(cfg.Adapters, newAdapterBuilders(), cfg.Library, validator)
	if len(errs) > 0 {
		return nil, errs
	}

	exchangeBidders := make(map[openrtb_ext.BidderName]*BidderAdapter, len(bidders))
	for bidderName, bidder := range bidders {
		exchangeBidders[bidderName] = AdaptBidder(bidder, client, cfg, me, bidderName)
	}
	return exchangeBidders, nil
}

func buildBidders(adapterConfigs map[string]config.Adapter, builders map[openrtb_ext.BidderName]adapters.Builder, library config.Library, validator openrtb_ext.BidderParamValidator) (map[openrtb_ext.BidderName]adapters.Bidder, []error) {
	bidders := make(map[openrtb_ext.BidderName]adapters.Bidder)
	var errs []error

	for bidder, adapterConfig := range adapterConfigs {
		bidderName, bidderNameFound := openrtb_ext.NormalizeBidderName(bidder)
		if !bidderNameFound {
			errs = append(errs, fmt.Errorf("%v: unknown bidder", bidder))
			continue
		}

		builder, builderFound := builders[bidderName]
		if !builderFound {
			errs = append(errs, fmt.Errorf("%v: builder not registered", bidder))
			continue
		}

		if adapterConfig.Disabled {
			continue
		}

		bidderInstance, builderErr := builder(bidderName, adapterConfig, library, validator)
		if builderErr != nil {
			errs = append(errs, fmt.Errorf("%v: %v", bidder, builderErr))
			continue
		}
		bidders[bidderName] = bidderInstance
	}
	return bidders, errs
}

// GetActiveBidders returns the known adapters which are not disabled in the host config.
func GetActiveBidders(adapterConfigs map[string]config.Adapter) []openrtb_ext.BidderName {
	active := make([]openrtb_ext.BidderName, 0, len(adapterConfigs))
	for _, bidderName := range openrtb_ext.CoreBidderNames() {
		if adapterConfig, ok := adapterConfigs[string(bidderName)]; ok && !adapterConfig.Disabled {
			active = append(active, bidderName)
		}
	}
	return active
}
