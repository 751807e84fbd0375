package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/errortypes"
	"github.com/prebid/header-adapters/exchange"
	"github.com/prebid/header-adapters/metrics"
	"github.com/prebid/header-adapters/openrtb_ext"
)

const maxRequestBodyBytes = 512 * 1024

// AdapterEndpoints exposes each adapter operation over http so that a header-bidding
// integration can be exercised without a browser.
type AdapterEndpoints struct {
	bidders map[openrtb_ext.BidderName]*exchange.BidderAdapter
	metrics metrics.MetricsEngine
}

func NewAdapterEndpoints(bidders map[openrtb_ext.BidderName]*exchange.BidderAdapter, me metrics.MetricsEngine) *AdapterEndpoints {
	return &AdapterEndpoints{
		bidders: bidders,
		metrics: me,
	}
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

type buildRequest struct {
	BidRequests   []*adapters.BidRequest  `json:"bidRequests"`
	BidderRequest *adapters.BidderRequest `json:"bidderRequest"`
}

type buildResponse struct {
	Requests []*adapters.ServerRequest `json:"requests"`
	Errors   []responseError           `json:"errors,omitempty"`
}

type interpretRequest struct {
	ServerResponse *adapters.ServerResponse `json:"serverResponse"`
	Request        *adapters.ServerRequest  `json:"request"`
}

type interpretResponse struct {
	Bids   []*adapters.Bid `json:"bids"`
	Errors []responseError `json:"errors,omitempty"`
}

type userSyncRequest struct {
	SyncOptions adapters.SyncOptions  `json:"syncOptions"`
	GDPRConsent *adapters.GDPRConsent `json:"gdprConsent,omitempty"`
}

type userSyncResponse struct {
	GVLID uint16              `json:"gvlid"`
	Syncs []adapters.UserSync `json:"syncs"`
}

type callBidsResponse struct {
	*exchange.BidderResponse
	Errors []responseError `json:"errors,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Warning bool   `json:"warning,omitempty"`
	Message string `json:"message"`
}

// Validate implements POST /adapters/:bidder/validate
func (e *AdapterEndpoints) Validate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	labels, start := e.begin(metrics.ReqTypeValidate)
	defer e.finish(&labels, start)

	bidder, ok := e.lookup(w, ps, &labels)
	if !ok {
		return
	}
	var bid adapters.BidRequest
	if !e.readJSON(w, r, &bid, &labels) {
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: bidder.Bidder.IsBidRequestValid(&bid)})
}

// Build implements POST /adapters/:bidder/build
func (e *AdapterEndpoints) Build(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	labels, start := e.begin(metrics.ReqTypeBuild)
	defer e.finish(&labels, start)

	bidder, ok := e.lookup(w, ps, &labels)
	if !ok {
		return
	}
	var req buildRequest
	if !e.readJSON(w, r, &req, &labels) {
		return
	}

	requests, errs := bidder.Bidder.BuildRequests(req.BidRequests, req.BidderRequest)
	if errortypes.ContainsFatalError(errs) {
		labels.RequestStatus = metrics.RequestStatusErr
	}
	if requests == nil {
		requests = []*adapters.ServerRequest{}
	}
	writeJSON(w, http.StatusOK, buildResponse{Requests: requests, Errors: toResponseErrors(errs)})
}

// Interpret implements POST /adapters/:bidder/interpret
func (e *AdapterEndpoints) Interpret(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	labels, start := e.begin(metrics.ReqTypeInterpret)
	defer e.finish(&labels, start)

	bidder, ok := e.lookup(w, ps, &labels)
	if !ok {
		return
	}
	var req interpretRequest
	if !e.readJSON(w, r, &req, &labels) {
		return
	}

	bids, errs := bidder.Bidder.InterpretResponse(req.ServerResponse, req.Request)
	if errortypes.ContainsFatalError(errs) {
		labels.RequestStatus = metrics.RequestStatusErr
	}
	if bids == nil {
		bids = []*adapters.Bid{}
	}
	writeJSON(w, http.StatusOK, interpretResponse{Bids: bids, Errors: toResponseErrors(errs)})
}

// UserSync implements POST /adapters/:bidder/usersync
func (e *AdapterEndpoints) UserSync(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	labels, start := e.begin(metrics.ReqTypeUserSync)
	defer e.finish(&labels, start)

	bidder, ok := e.lookup(w, ps, &labels)
	if !ok {
		return
	}
	syncer, ok := bidder.Bidder.(adapters.UserSyncer)
	if !ok {
		labels.RequestStatus = metrics.RequestStatusBadInput
		http.Error(w, fmt.Sprintf("Bidder %s does not support user syncs", bidder.BidderName), http.StatusBadRequest)
		return
	}
	var req userSyncRequest
	if !e.readJSON(w, r, &req, &labels) {
		return
	}

	syncs, err := syncer.GetUserSyncs(req.SyncOptions, req.GDPRConsent)
	if err != nil {
		labels.RequestStatus = metrics.RequestStatusErr
		glog.Errorf("user syncs for %s failed: %v", bidder.BidderName, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if syncs == nil {
		syncs = []adapters.UserSync{}
	}
	writeJSON(w, http.StatusOK, userSyncResponse{GVLID: syncer.GDPRVendorID(), Syncs: syncs})
}

// CallBids implements POST /adapters/:bidder/callbids. It runs the whole auction round trip
// against the live exchange and reports the http calls it made.
func (e *AdapterEndpoints) CallBids(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	labels, start := e.begin(metrics.ReqTypeCallBids)
	defer e.finish(&labels, start)

	bidder, ok := e.lookup(w, ps, &labels)
	if !ok {
		return
	}
	var req adapters.BidderRequest
	if !e.readJSON(w, r, &req, &labels) {
		return
	}

	response, errs := bidder.CallBids(r.Context(), &req)
	if hasTransportError(errs) {
		labels.RequestStatus = metrics.RequestStatusNetworkErr
	} else if errortypes.ContainsFatalError(errs) {
		labels.RequestStatus = metrics.RequestStatusErr
	}
	writeJSON(w, http.StatusOK, callBidsResponse{BidderResponse: response, Errors: toResponseErrors(errs)})
}

func (e *AdapterEndpoints) begin(requestType metrics.RequestType) (metrics.Labels, time.Time) {
	return metrics.Labels{
		RType:         requestType,
		RequestStatus: metrics.RequestStatusOK,
	}, time.Now()
}

func (e *AdapterEndpoints) finish(labels *metrics.Labels, start time.Time) {
	e.metrics.RecordRequest(*labels)
	e.metrics.RecordRequestTime(*labels, time.Since(start))
}

func (e *AdapterEndpoints) lookup(w http.ResponseWriter, ps httprouter.Params, labels *metrics.Labels) (*exchange.BidderAdapter, bool) {
	name := ps.ByName("bidder")
	if bidderName, ok := openrtb_ext.NormalizeBidderName(name); ok {
		if bidder, ok := e.bidders[bidderName]; ok {
			return bidder, true
		}
	}
	labels.RequestStatus = metrics.RequestStatusBadInput
	http.Error(w, fmt.Sprintf("Unknown or disabled bidder: %s", name), http.StatusNotFound)
	return nil, false
}

func (e *AdapterEndpoints) readJSON(w http.ResponseWriter, r *http.Request, target interface{}, labels *metrics.Labels) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		labels.RequestStatus = metrics.RequestStatusBadInput
		decodeErr := &errortypes.FailedToUnmarshal{Message: fmt.Sprintf("Invalid request body: %v", err)}
		http.Error(w, decodeErr.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	body, err := json.Marshal(value)
	if err != nil {
		glog.Errorf("failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		glog.Errorf("error writing response: %v", err)
	}
}

func toResponseErrors(errs []error) []responseError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]responseError, 0, len(errs))
	for _, err := range errs {
		out = append(out, responseError{
			Code:    errortypes.ReadCode(err),
			Warning: errortypes.IsWarning(err),
			Message: err.Error(),
		})
	}
	return out
}

func hasTransportError(errs []error) bool {
	for _, err := range errs {
		var timeout *errortypes.Timeout
		if errors.As(err, &timeout) || errortypes.ReadCode(err) == errortypes.UnknownErrorCode {
			return true
		}
	}
	return false
}
