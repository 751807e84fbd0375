package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/header-adapters/adapters"
	"github.com/prebid/header-adapters/adapters/triplelift"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/errortypes"
	"github.com/prebid/header-adapters/exchange"
	"github.com/prebid/header-adapters/metrics"
	"github.com/prebid/header-adapters/openrtb_ext"
	"github.com/prebid/header-adapters/static"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEndpoints(t *testing.T, endpoint string) (*AdapterEndpoints, *metrics.MetricsEngineMock) {
	t.Helper()
	cfg := &config.Configuration{
		Library: config.Library{Name: "prebid", Version: "2.44.0"},
		Client:  config.HTTPClient{TimeoutMS: 1000},
	}
	validator, err := openrtb_ext.NewBidderParamsValidator(static.BidderParams, static.BidderParamsDir)
	require.NoError(t, err)
	bidder, err := triplelift.Builder(openrtb_ext.BidderTriplelift, config.Adapter{
		Endpoint:    endpoint,
		UserSyncURL: "https://eb2.3lift.com/sync?gdpr={{.GDPR}}&cmp_cs={{.GDPRConsent}}",
	}, cfg.Library, validator)
	require.NoError(t, err)

	me := &metrics.MetricsEngineMock{}
	me.On("RecordRequest", mock.Anything).Return()
	me.On("RecordRequestTime", mock.Anything, mock.Anything).Return()
	me.On("RecordAdapterInvalidBids", mock.Anything, mock.Anything).Return()
	me.On("RecordAdapterRequest", mock.Anything).Return()
	me.On("RecordAdapterTime", mock.Anything, mock.Anything).Return()
	me.On("RecordAdapterBidReceived", mock.Anything, mock.Anything).Return()
	me.On("RecordAdapterPrice", mock.Anything, mock.Anything).Return()

	bidders := map[openrtb_ext.BidderName]*exchange.BidderAdapter{
		openrtb_ext.BidderTriplelift: exchange.AdaptBidder(bidder, http.DefaultClient, cfg, me, openrtb_ext.BidderTriplelift),
	}
	return NewAdapterEndpoints(bidders, me), me
}

func serve(handler httprouter.Handle, bidder, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/adapters/"+bidder, strings.NewReader(body))
	handler(recorder, request, httprouter.Params{{Key: "bidder", Value: bidder}})
	return recorder
}

func TestValidateEndpoint(t *testing.T) {
	testCases := []struct {
		description    string
		bidder         string
		body           string
		expectedStatus int
		expectedBody   string
		expectedLabel  metrics.RequestStatus
	}{
		{
			description:    "valid-params",
			bidder:         "triplelift",
			body:           `{"bidder":"triplelift","params":{"inventoryCode":"code"},"bidId":"1"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"valid":true}`,
			expectedLabel:  metrics.RequestStatusOK,
		},
		{
			description:    "invalid-params",
			bidder:         "TripleLift",
			body:           `{"bidder":"triplelift","params":{"floor":1},"bidId":"1"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"valid":false}`,
			expectedLabel:  metrics.RequestStatusOK,
		},
		{
			description:    "unknown-bidder",
			bidder:         "nosuchbidder",
			body:           `{}`,
			expectedStatus: http.StatusNotFound,
			expectedLabel:  metrics.RequestStatusBadInput,
		},
		{
			description:    "malformed-body",
			bidder:         "triplelift",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
			expectedLabel:  metrics.RequestStatusBadInput,
		},
	}

	for _, test := range testCases {
		endpoints, me := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")
		recorder := serve(endpoints.Validate, test.bidder, test.body)

		assert.Equal(t, test.expectedStatus, recorder.Code, test.description)
		if test.expectedBody != "" {
			assert.JSONEq(t, test.expectedBody, recorder.Body.String(), test.description)
		}
		me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeValidate, RequestStatus: test.expectedLabel})
	}
}

func TestBuildEndpoint(t *testing.T) {
	endpoints, me := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")
	body := `{
		"bidRequests": [{"bidder":"triplelift","params":{"inventoryCode":"code"},"sizes":[[300,250]],"bidId":"bid-1"}],
		"bidderRequest": {"bidderCode":"triplelift","refererInfo":{"referer":"https://publisher.example"}}
	}`

	recorder := serve(endpoints.Build, "triplelift", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Requests []*adapters.ServerRequest `json:"requests"`
		Errors   []responseError           `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Requests, 1)
	assert.Equal(t, "POST", response.Requests[0].Method)
	assert.Equal(t, "https://tlx.3lift.com/header/auction?lib=prebid&version=2.44.0&referrer=https%3A%2F%2Fpublisher.example", response.Requests[0].URL)
	assert.Empty(t, response.Errors)
	require.NotNil(t, response.Requests[0].BidderRequest)
	assert.Equal(t, "bid-1", response.Requests[0].BidderRequest.Bids[0].BidID)
	me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeBuild, RequestStatus: metrics.RequestStatusOK})
}

func TestBuildEndpointReportsErrors(t *testing.T) {
	endpoints, me := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")

	recorder := serve(endpoints.Build, "triplelift", `{"bidRequests":[],"bidderRequest":{}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response buildResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Empty(t, response.Requests)
	require.Len(t, response.Errors, 1)
	assert.Equal(t, errortypes.BadInputErrorCode, response.Errors[0].Code)
	assert.False(t, response.Errors[0].Warning)
	me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeBuild, RequestStatus: metrics.RequestStatusErr})
}

func TestBuildEndpointWarningsKeepStatus(t *testing.T) {
	endpoints, me := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")

	recorder := serve(endpoints.Build, "triplelift", `{
		"bidRequests": [{"bidder":"triplelift","params":{"inventoryCode":"code"},"bidId":"bid-1"}],
		"bidderRequest": {"gdprConsent":{"consentString":"!!!"}}
	}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response buildResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Requests, 1)
	require.Len(t, response.Errors, 1)
	assert.True(t, response.Errors[0].Warning)
	me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeBuild, RequestStatus: metrics.RequestStatusOK})
}

func TestInterpretEndpoint(t *testing.T) {
	endpoints, me := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")
	body := `{
		"serverResponse": {"statusCode":200,"body":{"bids":[{"imp_id":0,"cpm":2.5,"width":300,"height":250,"ad":"markup","creativeId":"cr"}]}},
		"request": {"method":"POST","url":"https://tlx.3lift.com/header/auction","bidderRequest":{"bids":[{"bidId":"bid-1"}]}}
	}`

	recorder := serve(endpoints.Interpret, "triplelift", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response interpretResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Bids, 1)
	assert.Equal(t, "bid-1", response.Bids[0].RequestID)
	assert.Equal(t, 2.5, response.Bids[0].CPM)
	assert.Equal(t, "cr", response.Bids[0].CreativeID)
	assert.Empty(t, response.Errors)
	me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeInterpret, RequestStatus: metrics.RequestStatusOK})
}

func TestUserSyncEndpoint(t *testing.T) {
	endpoints, _ := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")

	recorder := serve(endpoints.UserSync, "triplelift", `{"syncOptions":{"iframeEnabled":true},"gdprConsent":{"consentString":"abc","gdprApplies":false}}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"gvlid":28,"syncs":[{"type":"iframe","url":"https://eb2.3lift.com/sync?gdpr=0&cmp_cs=abc"}]}`, recorder.Body.String())

	recorder = serve(endpoints.UserSync, "triplelift", `{"syncOptions":{}}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"gvlid":28,"syncs":[]}`, recorder.Body.String())
}

func TestCallBidsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[{"imp_id":0,"cpm":1.25,"width":300,"height":250,"ad":"markup"}]}`))
	}))
	defer server.Close()

	endpoints, me := newTestEndpoints(t, server.URL)
	body := `{"bidderCode":"triplelift","bids":[
		{"bidder":"triplelift","params":{"inventoryCode":"code"},"sizes":[[300,250]],"bidId":"bid-1"},
		{"bidder":"triplelift","params":{},"bidId":"bid-2"}
	]}`

	recorder := serve(endpoints.CallBids, "triplelift", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		CallID    string                  `json:"callId"`
		Bids      []*adapters.Bid         `json:"bids"`
		HttpCalls []*exchange.ExtHttpCall `json:"httpcalls"`
		Invalid   []*adapters.BidRequest  `json:"invalid"`
		Errors    []responseError         `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.NotEmpty(t, response.CallID)
	require.Len(t, response.Bids, 1)
	assert.Equal(t, "bid-1", response.Bids[0].RequestID)
	require.Len(t, response.HttpCalls, 1)
	assert.Equal(t, http.StatusOK, response.HttpCalls[0].Status)
	require.Len(t, response.Invalid, 1)
	assert.Equal(t, "bid-2", response.Invalid[0].BidID)
	assert.Empty(t, response.Errors)
	me.AssertCalled(t, "RecordRequest", metrics.Labels{RType: metrics.ReqTypeCallBids, RequestStatus: metrics.RequestStatusOK})
}

func TestUndecodableBodyIsRejected(t *testing.T) {
	endpoints, _ := newTestEndpoints(t, "https://tlx.3lift.com/header/auction")

	recorder := serve(endpoints.Interpret, "triplelift", `{"serverResponse": [`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.True(t, strings.HasPrefix(recorder.Body.String(), "Invalid request body: "), recorder.Body.String())
}

func TestHasTransportError(t *testing.T) {
	assert.True(t, hasTransportError([]error{&errortypes.Timeout{Message: "late"}}))
	assert.True(t, hasTransportError([]error{http.ErrHandlerTimeout}))
	assert.False(t, hasTransportError([]error{&errortypes.BadServerResponse{Message: "500"}}))
	assert.False(t, hasTransportError(nil))
}
