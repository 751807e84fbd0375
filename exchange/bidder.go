package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/errortypes"
	"github.com/prebid/header-adapters/metrics"
	"github.com/prebid/header-adapters/openrtb_ext"
	"golang.org/x/net/context/ctxhttp"
)

// BidderAdapter runs the full lifecycle of one Bidder against its exchange: param validation,
// request building, the http transport and response interpretation.
//
// The Bidder itself never touches the network. The harness owns the client, the time budget
// and the metrics so that every adapter gets the same treatment.
type BidderAdapter struct {
	Bidder     adapters.Bidder
	BidderName openrtb_ext.BidderName
	Client     *http.Client
	me         metrics.MetricsEngine
	timeout    time.Duration
}

// AdaptBidder wraps the Bidder so that it can be called over http.
func AdaptBidder(bidder adapters.Bidder, client *http.Client, cfg *config.Configuration, me metrics.MetricsEngine, name openrtb_ext.BidderName) *BidderAdapter {
	return &BidderAdapter{
		Bidder:     bidder,
		BidderName: name,
		Client:     client,
		me:         me,
		timeout:    cfg.Client.Timeout(),
	}
}

// BidderResponse is the outcome of one CallBids.
type BidderResponse struct {
	CallID    string                 `json:"callId"`
	Bids      []*adapters.Bid        `json:"bids"`
	HttpCalls []*ExtHttpCall         `json:"httpcalls,omitempty"`
	Invalid   []*adapters.BidRequest `json:"invalid,omitempty"`
}

// ExtHttpCall is the debug record of one exchange call.
type ExtHttpCall struct {
	Uri          string `json:"uri"`
	RequestBody  string `json:"requestbody"`
	ResponseBody string `json:"responsebody"`
	Status       int    `json:"status"`
}

type httpCallInfo struct {
	request  *adapters.ServerRequest
	response *adapters.ServerResponse
	err      error
}

// CallBids drops the bids with invalid params, builds the exchange requests for the rest, sends
// them and interprets the replies. Warnings are returned alongside the bids; fatal errors of one
// call never cancel the others.
func (bidder *BidderAdapter) CallBids(ctx context.Context, bidderRequest *adapters.BidderRequest) (response *BidderResponse, errs []error) {
	start := time.Now()
	response = &BidderResponse{
		CallID: newCallID(),
		Bids:   []*adapters.Bid{},
	}
	labels := metrics.AdapterLabels{
		Adapter:     bidder.BidderName,
		AdapterBids: metrics.AdapterBidNone,
	}

	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("Recovered panic from bidder %s on call %s: %v. Stack trace is: %v", bidder.BidderName, response.CallID, r, string(debug.Stack()))
			bidder.me.RecordAdapterPanic(labels)
			errs = append(errs, &errortypes.FailedToRequestBids{Message: fmt.Sprintf("bidder %s failed unexpectedly", bidder.BidderName)})
		}
	}()

	if bidderRequest == nil {
		return response, []error{&errortypes.BadInput{Message: "missing bidder request"}}
	}

	validBids := make([]*adapters.BidRequest, 0, len(bidderRequest.Bids))
	for _, bid := range bidderRequest.Bids {
		if bid != nil && bidder.Bidder.IsBidRequestValid(bid) {
			validBids = append(validBids, bid)
		} else {
			response.Invalid = append(response.Invalid, bid)
		}
	}
	bidder.me.RecordAdapterInvalidBids(bidder.BidderName, len(response.Invalid))
	if len(validBids) == 0 {
		return response, nil
	}

	filtered := *bidderRequest
	filtered.Bids = validBids
	reqs, errs := bidder.Bidder.BuildRequests(validBids, &filtered)

	if len(reqs) > 0 {
		ctx, cancel := bidder.withTimeout(ctx, bidderRequest.Timeout)
		defer cancel()

		for _, httpInfo := range bidder.doRequests(ctx, reqs, response.CallID) {
			response.HttpCalls = append(response.HttpCalls, makeExt(httpInfo))
			if httpInfo.err != nil {
				errs = append(errs, httpInfo.err)
				continue
			}
			if httpInfo.response.StatusCode == http.StatusNoContent {
				continue
			}
			bids, moreErrs := bidder.Bidder.InterpretResponse(httpInfo.response, httpInfo.request)
			errs = append(errs, moreErrs...)
			response.Bids = append(response.Bids, bids...)
		}
	}

	bidder.recordMetrics(&labels, response.Bids, errs, time.Since(start))
	return response, errs
}

func (bidder *BidderAdapter) recordMetrics(labels *metrics.AdapterLabels, bids []*adapters.Bid, errs []error, elapsed time.Duration) {
	if len(bids) > 0 {
		labels.AdapterBids = metrics.AdapterBidPresent
	}
	labels.AdapterErrors = errorsToMetric(errortypes.FatalOnly(errs))
	if warnings := errortypes.WarningOnly(errs); len(warnings) > 0 {
		glog.V(2).Infof("%s: %d warnings: %v", bidder.BidderName, len(warnings), warnings)
	}

	bidder.me.RecordAdapterRequest(*labels)
	bidder.me.RecordAdapterTime(*labels, elapsed)
	for _, bid := range bids {
		bidder.me.RecordAdapterBidReceived(*labels, bid.DealID != "")
		bidder.me.RecordAdapterPrice(*labels, bid.CPM)
	}
}

// withTimeout applies the auction budget, or the client default, when the context carries no deadline.
func (bidder *BidderAdapter) withTimeout(ctx context.Context, auctionTimeoutMS int64) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := bidder.timeout
	if auctionTimeoutMS > 0 {
		timeout = time.Duration(auctionTimeoutMS) * time.Millisecond
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// doRequests sends every request, in parallel when there are several. The results keep the request order.
func (bidder *BidderAdapter) doRequests(ctx context.Context, reqs []*adapters.ServerRequest, callID string) []*httpCallInfo {
	results := make([]*httpCallInfo, len(reqs))
	if len(reqs) == 1 {
		results[0] = bidder.doRequest(ctx, reqs[0], callID)
		return results
	}

	type indexedCall struct {
		index int
		info  *httpCallInfo
	}
	responseChannel := make(chan indexedCall, len(reqs))
	for i, req := range reqs {
		go func(i int, req *adapters.ServerRequest) {
			responseChannel <- indexedCall{index: i, info: bidder.doRequest(ctx, req, callID)}
		}(i, req)
	}
	for range reqs {
		call := <-responseChannel
		results[call.index] = call.info
	}
	return results
}

func (bidder *BidderAdapter) doRequest(ctx context.Context, req *adapters.ServerRequest, callID string) *httpCallInfo {
	var body io.Reader
	if len(req.Data) > 0 {
		body = bytes.NewReader(req.Data)
	}
	httpReq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return &httpCallInfo{
			request: req,
			err:     &errortypes.FailedToRequestBids{Message: err.Error()},
		}
	}
	if req.Headers != nil {
		httpReq.Header = req.Headers.Clone()
	}

	glog.V(2).Infof("bidder %s call %s: %s %s", bidder.BidderName, callID, req.Method, req.URL)
	httpResp, err := ctxhttp.Do(ctx, bidder.Client, httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &errortypes.Timeout{Message: err.Error()}
		}
		glog.Warningf("bidder %s call %s failed: %v", bidder.BidderName, callID, err)
		return &httpCallInfo{
			request: req,
			err:     err,
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &httpCallInfo{
			request: req,
			err:     err,
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		err = &errortypes.BadServerResponse{
			Message: fmt.Sprintf("Server responded with failure status: %d. Set request.debug = 1 for more info", httpResp.StatusCode),
		}
	}

	return &httpCallInfo{
		request: req,
		response: &adapters.ServerResponse{
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
			Headers:    httpResp.Header,
		},
		err: err,
	}
}

func makeExt(httpInfo *httpCallInfo) *ExtHttpCall {
	ext := &ExtHttpCall{
		Uri:         httpInfo.request.URL,
		RequestBody: string(httpInfo.request.Data),
	}
	if httpInfo.response != nil {
		ext.ResponseBody = string(httpInfo.response.Body)
		ext.Status = httpInfo.response.StatusCode
	}
	return ext
}

func errorsToMetric(errs []error) map[metrics.AdapterError]struct{} {
	ret := make(map[metrics.AdapterError]struct{}, len(errs))
	var s struct{}
	for _, err := range errs {
		switch errortypes.ReadCode(err) {
		case errortypes.TimeoutErrorCode:
			ret[metrics.AdapterErrorTimeout] = s
		case errortypes.BadInputErrorCode:
			ret[metrics.AdapterErrorBadInput] = s
		case errortypes.BadServerResponseErrorCode:
			ret[metrics.AdapterErrorBadServerResponse] = s
		case errortypes.FailedToRequestBidsErrorCode:
			ret[metrics.AdapterErrorFailedToRequestBids] = s
		default:
			ret[metrics.AdapterErrorUnknown] = s
		}
	}
	return ret
}

func newCallID() string {
	id, err := uuid.NewV4()
	if err != nil {
		glog.Errorf("failed to generate a call id: %v", err)
		return ""
	}
	return id.String()
}
