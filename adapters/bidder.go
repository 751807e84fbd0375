package adapters

import (
	"encoding/json"
	"net/http"

	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/openrtb_ext"
)

// Bidder connects the header-bidding framework to one exchange.
//
// A Bidder holds no mutable state. The framework may call its methods concurrently and in any
// order consistent with the auction lifecycle: IsBidRequestValid, then BuildRequests, then
// InterpretResponse once the framework has performed the transport.
type Bidder interface {
	// IsBidRequestValid reports whether the publisher params of the bid are good enough to bid on.
	// Invalid bids are dropped from the auction; this never fails loudly.
	IsBidRequestValid(bid *BidRequest) bool

	// BuildRequests turns the valid bids of one auction into the outbound requests for the exchange.
	//
	// A Bidder *may* return requests and errors together. Errors describe situations which
	// make the request "less than ideal", such as a malformed consent string.
	BuildRequests(bidRequests []*BidRequest, bidderRequest *BidderRequest) ([]*ServerRequest, []error)

	// InterpretResponse parses the exchange reply to one of the requests made by BuildRequests.
	// The returned slice is never nil when the errors are all non-fatal.
	InterpretResponse(response *ServerResponse, request *ServerRequest) ([]*Bid, []error)
}

// UserSyncer is implemented by Bidders which offer user id syncs.
type UserSyncer interface {
	GetUserSyncs(syncOptions SyncOptions, consent *GDPRConsent) ([]UserSync, error)

	// GDPRVendorID is the bidder's id on the IAB global vendor list.
	GDPRVendorID() uint16
}

// Builder is the common interface to build a Bidder for one exchange from the host config.
// All bidders share the one params validator of the host.
type Builder func(bidderName openrtb_ext.BidderName, adapterConfig config.Adapter, library config.Library, validator openrtb_ext.BidderParamValidator) (Bidder, error)

// BidRequest is one ad slot's request descriptor, as configured by the publisher.
type BidRequest struct {
	Bidder string `json:"bidder"`
	// Params holds the exchange specific params. The Bidder owns their schema.
	Params     json.RawMessage `json:"params,omitempty"`
	AdUnitCode string          `json:"adUnitCode"`
	// Sizes is the raw [[w,h], ...] list. Entries may be malformed.
	Sizes           json.RawMessage `json:"sizes,omitempty"`
	BidID           string          `json:"bidId"`
	BidderRequestID string          `json:"bidderRequestId"`
	AuctionID       string          `json:"auctionId"`
}

// BidderRequest is the envelope for all bids of one bidder in one auction.
type BidderRequest struct {
	BidderCode      string        `json:"bidderCode"`
	AuctionID       string        `json:"auctionId"`
	BidderRequestID string        `json:"bidderRequestId"`
	Bids            []*BidRequest `json:"bids"`
	GDPRConsent     *GDPRConsent  `json:"gdprConsent,omitempty"`
	RefererInfo     *RefererInfo  `json:"refererInfo,omitempty"`
	// Timeout is the auction time budget in milliseconds.
	Timeout int64 `json:"timeout,omitempty"`
}

// GDPRConsent is the consent data collected by the consent management platform.
type GDPRConsent struct {
	ConsentString string `json:"consentString,omitempty"`
	GDPRApplies   *bool  `json:"gdprApplies,omitempty"`
}

type RefererInfo struct {
	Referer    string   `json:"referer"`
	ReachedTop bool     `json:"reachedTop"`
	NumIframes int      `json:"numIframes"`
	Stack      []string `json:"stack,omitempty"`
}

// ServerRequest describes one call the framework must make to the exchange.
type ServerRequest struct {
	Method  string          `json:"method"`
	URL     string          `json:"url"`
	Data    json.RawMessage `json:"data"`
	Headers http.Header     `json:"headers,omitempty"`

	// BidderRequest is handed back to InterpretResponse. Its Bids are positionally aligned
	// with the impressions in Data.
	BidderRequest *BidderRequest `json:"bidderRequest,omitempty"`
}

// ServerResponse is the exchange reply as received by the framework.
type ServerResponse struct {
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Headers    http.Header     `json:"headers,omitempty"`
}

// Bid is the normalized bid handed to the auction engine.
type Bid struct {
	RequestID  string  `json:"requestId"`
	CPM        float64 `json:"cpm"`
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	NetRevenue bool    `json:"netRevenue"`
	Ad         string  `json:"ad"`
	CreativeID string  `json:"creativeId"`
	DealID     string  `json:"dealId"`
	Currency   string  `json:"currency"`
	TTL        int     `json:"ttl"`
}

// SyncOptions are the user sync types the publisher allows.
type SyncOptions struct {
	IFrameEnabled bool `json:"iframeEnabled"`
	PixelEnabled  bool `json:"pixelEnabled"`
}

// UserSync is one user sync the browser should perform.
type UserSync struct {
	Type SyncType `json:"type"`
	URL  string   `json:"url"`
}
