// Package static embeds the files shipped alongside the binary.
package static

import "embed"

// BidderParams holds the bidder-params/{bidder}.json schemas.
//
//go:embed bidder-params/*.json
var BidderParams embed.FS

// BidderParamsDir is the directory of BidderParams holding the schemas.
const BidderParamsDir = "bidder-params"
