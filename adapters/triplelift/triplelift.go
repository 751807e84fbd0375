package triplelift

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"
	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/errortypes"
	"github.com/prebid/header-adapters/openrtb_ext"
	"github.com/prebid/header-adapters/privacy/gdpr"
	"github.com/prebid/openrtb/v20/openrtb2"
)

const (
	gvlVendorID = 28

	bidCurrency = "USD"
	bidTTL      = 33
)

type adapter struct {
	endpoint  *url.URL
	library   config.Library
	validator openrtb_ext.BidderParamValidator
	syncer    *adapters.Syncer
}

type tlRequest struct {
	Imp  []tlImp        `json:"imp"`
	Site *openrtb2.Site `json:"site,omitempty"`
	Regs *openrtb2.Regs `json:"regs,omitempty"`
	User *openrtb2.User `json:"user,omitempty"`
	TMax int64          `json:"tmax,omitempty"`
}

type tlImp struct {
	ID     int      `json:"id"`
	TagID  string   `json:"tagid"`
	Floor  *float64 `json:"floor,omitempty"`
	Banner tlBanner `json:"banner"`
}

// tlBanner always carries a format array, even an empty one.
type tlBanner struct {
	Format []openrtb2.Format `json:"format"`
}

type tlResponse struct {
	Bids []tlBid `json:"bids"`
}

type tlBid struct {
	ImpID      int             `json:"imp_id"`
	CPM        float64         `json:"cpm"`
	Width      int64           `json:"width"`
	Height     int64           `json:"height"`
	Ad         string          `json:"ad"`
	IURL       string          `json:"iurl"`
	CreativeID json.RawMessage `json:"creativeId,omitempty"`
	DealID     json.RawMessage `json:"dealId,omitempty"`
}

type queryParam struct {
	key   string
	value string
	// keep emits the parameter even when the value is empty.
	keep bool
}

// Builder builds a new instance of the TripleLift adapter for the given bidder with the given config.
func Builder(bidderName openrtb_ext.BidderName, adapterConfig config.Adapter, library config.Library, validator openrtb_ext.BidderParamValidator) (adapters.Bidder, error) {
	if validator == nil {
		return nil, fmt.Errorf("no bidder params validator given")
	}
	endpoint, err := url.Parse(adapterConfig.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to parse endpoint url %q: %v", adapterConfig.Endpoint, err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint url %q must be absolute", adapterConfig.Endpoint)
	}

	var syncTemplate *template.Template
	if adapterConfig.UserSyncURL != "" {
		syncTemplate, err = template.New("userSyncTemplate").Parse(adapterConfig.UserSyncURL)
		if err != nil {
			return nil, fmt.Errorf("unable to parse user sync url template: %v", err)
		}
	}

	bidder := &adapter{
		endpoint:  endpoint,
		library:   library,
		validator: validator,
		syncer:    adapters.NewSyncer(string(bidderName), gvlVendorID, syncTemplate, adapters.SyncTypeIFrame, adapters.SyncTypeImage),
	}
	return bidder, nil
}

func (a *adapter) IsBidRequestValid(bid *adapters.BidRequest) bool {
	if bid == nil {
		return false
	}
	return a.validator.Validate(openrtb_ext.BidderTriplelift, bid.Params) == nil
}

func (a *adapter) BuildRequests(bidRequests []*adapters.BidRequest, bidderRequest *adapters.BidderRequest) ([]*adapters.ServerRequest, []error) {
	var errs []error

	imps := make([]tlImp, 0, len(bidRequests))
	impBids := make([]*adapters.BidRequest, 0, len(bidRequests))
	for _, bid := range bidRequests {
		if bid == nil {
			errs = append(errs, &errortypes.BadInput{Message: "nil bid request"})
			continue
		}
		imp, err := buildImp(bid, len(imps))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		imps = append(imps, imp)
		impBids = append(impBids, bid)
	}
	if len(imps) == 0 {
		errs = append(errs, &errortypes.BadInput{Message: "No valid impressions for triplelift"})
		return nil, errs
	}

	// imp_id in the reply indexes the bids of this copy, so it lists exactly the bids sent as impressions.
	correlation := &adapters.BidderRequest{}
	if bidderRequest != nil {
		*correlation = *bidderRequest
	}
	correlation.Bids = impBids

	policy := consentPolicy(correlation.GDPRConsent)
	if err := policy.ValidateConsent(); err != nil {
		errs = append(errs, &errortypes.Warning{
			Message:     err.Error(),
			WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
		})
	}

	referrer := ""
	if correlation.RefererInfo != nil {
		referrer = correlation.RefererInfo.Referer
	}

	payload := tlRequest{
		Imp:  imps,
		Regs: policy.Regs(),
		User: policy.User(),
		TMax: correlation.Timeout,
	}
	if referrer != "" {
		payload.Site = &openrtb2.Site{Page: referrer}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		errs = append(errs, err)
		return nil, errs
	}

	endpoint := a.buildEndpointURL(referrer, correlation.Timeout, policy)
	glog.V(2).Infof("triplelift request built: %s", endpoint)

	headers := http.Header{}
	headers.Add("Content-Type", "application/json;charset=utf-8")
	headers.Add("Accept", "application/json")

	return []*adapters.ServerRequest{{
		Method:        http.MethodPost,
		URL:           endpoint,
		Data:          data,
		Headers:       headers,
		BidderRequest: correlation,
	}}, errs
}

func buildImp(bid *adapters.BidRequest, index int) (tlImp, error) {
	params, err := parseParams(bid.Params)
	if err != nil {
		return tlImp{}, err
	}
	return tlImp{
		ID:     index,
		TagID:  params.InventoryCode,
		Floor:  params.Floor,
		Banner: tlBanner{Format: parseFormats(bid.Sizes)},
	}, nil
}

// parseParams reads the publisher params leniently. Any inventoryCode other than null or "" is
// used as the tag id, non-string values in their JSON text form. floor is kept only when it is a number.
func parseParams(params json.RawMessage) (openrtb_ext.ExtImpTriplelift, error) {
	var ext openrtb_ext.ExtImpTriplelift

	value, dataType, _, err := jsonparser.Get(params, "inventoryCode")
	if err != nil && dataType != jsonparser.NotExist {
		return ext, &errortypes.BadInput{Message: fmt.Sprintf("unable to read inventoryCode: %v", err)}
	}
	switch dataType {
	case jsonparser.String:
		code, err := jsonparser.ParseString(value)
		if err != nil {
			return ext, &errortypes.BadInput{Message: fmt.Sprintf("unable to read inventoryCode: %v", err)}
		}
		ext.InventoryCode = code
	case jsonparser.Number, jsonparser.Boolean, jsonparser.Object, jsonparser.Array:
		ext.InventoryCode = string(value)
	}
	if ext.InventoryCode == "" {
		return ext, &errortypes.BadInput{Message: "inventoryCode is required"}
	}

	value, dataType, _, err = jsonparser.Get(params, "floor")
	if err == nil && dataType == jsonparser.Number {
		if floor, err := jsonparser.ParseFloat(value); err == nil {
			ext.Floor = &floor
		}
	}
	return ext, nil
}

// parseFormats keeps the [w,h] pairs of two integral numbers, in order. Anything else is dropped.
func parseFormats(sizes json.RawMessage) []openrtb2.Format {
	formats := make([]openrtb2.Format, 0)
	if len(sizes) == 0 {
		return formats
	}
	jsonparser.ArrayEach(sizes, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if err != nil || dataType != jsonparser.Array {
			return
		}
		if format, ok := parseFormat(value); ok {
			formats = append(formats, format)
		}
	})
	return formats
}

func parseFormat(size []byte) (openrtb2.Format, bool) {
	dims := make([]int64, 0, 2)
	valid := true
	jsonparser.ArrayEach(size, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if err != nil || dataType != jsonparser.Number {
			valid = false
			return
		}
		dim, err := jsonparser.ParseFloat(value)
		if err != nil || dim != math.Trunc(dim) || math.Abs(dim) > math.MaxInt32 {
			valid = false
			return
		}
		dims = append(dims, int64(dim))
	})
	if !valid || len(dims) != 2 {
		return openrtb2.Format{}, false
	}
	return openrtb2.Format{W: dims[0], H: dims[1]}, true
}

func consentPolicy(consent *adapters.GDPRConsent) gdpr.Policy {
	if consent == nil {
		return gdpr.Policy{Signal: gdpr.SignalAmbiguous}
	}
	return gdpr.Policy{
		Signal:  gdpr.SignalFromApplies(consent.GDPRApplies),
		Consent: consent.ConsentString,
	}
}

// buildEndpointURL appends the call parameters to the configured endpoint in a fixed order.
// The referrer is always present; other empty values are skipped.
func (a *adapter) buildEndpointURL(referrer string, tmax int64, policy gdpr.Policy) string {
	endpoint := *a.endpoint

	tmaxValue := ""
	if tmax > 0 {
		tmaxValue = strconv.FormatInt(tmax, 10)
	}
	params := []queryParam{
		{key: "lib", value: a.library.Name},
		{key: "version", value: a.library.Version},
		{key: "referrer", value: referrer, keep: true},
		{key: "tmax", value: tmaxValue},
		{key: "gdpr", value: policy.QueryValue()},
		{key: "cmp_cs", value: policy.Consent},
	}

	var query strings.Builder
	query.WriteString(endpoint.RawQuery)
	for _, param := range params {
		if param.value == "" && !param.keep {
			continue
		}
		if query.Len() > 0 {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(param.key))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(param.value))
	}
	endpoint.RawQuery = query.String()
	return endpoint.String()
}

func (a *adapter) InterpretResponse(response *adapters.ServerResponse, request *adapters.ServerRequest) ([]*adapters.Bid, []error) {
	if request == nil || request.BidderRequest == nil {
		return []*adapters.Bid{}, []error{&errortypes.BadInput{Message: "missing bidder request to correlate the response with"}}
	}
	if response != nil && response.StatusCode == http.StatusNoContent {
		return []*adapters.Bid{}, nil
	}
	if response != nil && response.StatusCode != 0 && (response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices) {
		return []*adapters.Bid{}, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("Unexpected status code: %d. Run with request.debug = 1 for more info", response.StatusCode),
		}}
	}

	body := []byte(nil)
	if response != nil {
		body = bytes.TrimSpace(response.Body)
	}
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []*adapters.Bid{}, []error{&errortypes.BadServerResponse{Message: "empty response body"}}
	}

	var tlResp tlResponse
	if err := json.Unmarshal(body, &tlResp); err != nil {
		return []*adapters.Bid{}, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("unable to parse response body: %v", err),
		}}
	}

	var errs []error
	originals := request.BidderRequest.Bids
	bids := make([]*adapters.Bid, 0, len(tlResp.Bids))
	for _, bid := range tlResp.Bids {
		if bid.ImpID < 0 || bid.ImpID >= len(originals) || originals[bid.ImpID] == nil {
			errs = append(errs, &errortypes.BadServerResponse{
				Message: fmt.Sprintf("imp_id %d does not match any of the %d requested bids", bid.ImpID, len(originals)),
			})
			continue
		}
		bids = append(bids, normalizeBid(bid, originals[bid.ImpID]))
	}
	return bids, errs
}

func normalizeBid(bid tlBid, original *adapters.BidRequest) *adapters.Bid {
	creativeID := stringOrNumber(bid.CreativeID)
	if creativeID == "" {
		creativeID = strconv.Itoa(bid.ImpID)
	}
	return &adapters.Bid{
		RequestID:  original.BidID,
		CPM:        bid.CPM,
		Width:      sizeOrOne(bid.Width),
		Height:     sizeOrOne(bid.Height),
		NetRevenue: true,
		Ad:         bid.Ad,
		CreativeID: creativeID,
		DealID:     stringOrNumber(bid.DealID),
		Currency:   bidCurrency,
		TTL:        bidTTL,
	}
}

func sizeOrOne(size int64) int64 {
	if size <= 0 {
		return 1
	}
	return size
}

// stringOrNumber renders an id the exchange may send either as a string or as a number.
func stringOrNumber(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (a *adapter) GDPRVendorID() uint16 {
	return a.syncer.GDPRVendorID()
}

func (a *adapter) GetUserSyncs(syncOptions adapters.SyncOptions, consent *adapters.GDPRConsent) ([]adapters.UserSync, error) {
	return a.syncer.GetUserSyncs(syncOptions, consent)
}
