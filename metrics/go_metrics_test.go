package metrics

import (
	"testing"
	"time"

	"github.com/prebid/header-adapters/openrtb_ext"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics(t *testing.T) {
	registry := metrics.NewRegistry()
	m := NewMetrics(registry, []openrtb_ext.BidderName{openrtb_ext.BidderTriplelift})

	ensureContains(t, registry, "active_connections", m.ConnectionCounter)
	ensureContains(t, registry, "requests.ok.build", m.RequestStatuses[ReqTypeBuild][RequestStatusOK])
	ensureContains(t, registry, "requests.badinput.callbids", m.RequestStatuses[ReqTypeCallBids][RequestStatusBadInput])
	ensureContains(t, registry, "request_time.interpret", m.RequestTimers[ReqTypeInterpret])

	am := m.AdapterMetrics[openrtb_ext.BidderTriplelift]
	ensureContains(t, registry, "adapter.triplelift.requests.gotbids", am.GotBidsMeter)
	ensureContains(t, registry, "adapter.triplelift.requests.nobid", am.NoBidMeter)
	ensureContains(t, registry, "adapter.triplelift.invalid_bids", am.InvalidBidsMeter)
	ensureContains(t, registry, "adapter.triplelift.prices", am.PriceHistogram)
	ensureContains(t, registry, "adapter.triplelift.requests.badserverresponse", am.ErrorMeters[AdapterErrorBadServerResponse])
}

func TestRecordRequest(t *testing.T) {
	m := NewMetrics(metrics.NewRegistry(), []openrtb_ext.BidderName{openrtb_ext.BidderTriplelift})

	m.RecordRequest(Labels{RType: ReqTypeBuild, RequestStatus: RequestStatusOK})
	m.RecordRequest(Labels{RType: ReqTypeBuild, RequestStatus: RequestStatusOK})
	m.RecordRequest(Labels{RType: ReqTypeInterpret, RequestStatus: RequestStatusBadInput})
	m.RecordRequestTime(Labels{RType: ReqTypeBuild, RequestStatus: RequestStatusOK}, 20*time.Millisecond)
	m.RecordRequestTime(Labels{RType: ReqTypeInterpret, RequestStatus: RequestStatusBadInput}, 20*time.Millisecond)

	assert.Equal(t, int64(2), m.RequestStatuses[ReqTypeBuild][RequestStatusOK].Count())
	assert.Equal(t, int64(1), m.RequestStatuses[ReqTypeInterpret][RequestStatusBadInput].Count())
	assert.Equal(t, int64(1), m.RequestTimers[ReqTypeBuild].Count())
	assert.Equal(t, int64(0), m.RequestTimers[ReqTypeInterpret].Count(), "failed requests are not timed")
}

func TestRecordConnections(t *testing.T) {
	m := NewMetrics(metrics.NewRegistry(), nil)

	m.RecordConnectionAccept(true)
	m.RecordConnectionAccept(true)
	m.RecordConnectionClose(true)
	m.RecordConnectionAccept(false)
	m.RecordConnectionClose(false)

	assert.Equal(t, int64(1), m.ConnectionCounter.Count())
	assert.Equal(t, int64(1), m.ConnectionAcceptErrors.Count())
	assert.Equal(t, int64(1), m.ConnectionCloseErrors.Count())
}

func TestRecordAdapterMetrics(t *testing.T) {
	m := NewMetrics(metrics.NewRegistry(), []openrtb_ext.BidderName{openrtb_ext.BidderTriplelift})
	am := m.AdapterMetrics[openrtb_ext.BidderTriplelift]

	gotBids := AdapterLabels{Adapter: openrtb_ext.BidderTriplelift, AdapterBids: AdapterBidPresent}
	failed := AdapterLabels{
		Adapter:       openrtb_ext.BidderTriplelift,
		AdapterBids:   AdapterBidNone,
		AdapterErrors: map[AdapterError]struct{}{AdapterErrorBadServerResponse: {}},
	}

	m.RecordAdapterRequest(gotBids)
	m.RecordAdapterRequest(failed)
	m.RecordAdapterInvalidBids(openrtb_ext.BidderTriplelift, 3)
	m.RecordAdapterInvalidBids(openrtb_ext.BidderTriplelift, 0)
	m.RecordAdapterBidReceived(gotBids, true)
	m.RecordAdapterBidReceived(gotBids, false)
	m.RecordAdapterPrice(gotBids, 1.062)
	m.RecordAdapterTime(gotBids, 30*time.Millisecond)
	m.RecordAdapterTime(failed, 30*time.Millisecond)
	m.RecordAdapterPanic(gotBids)

	assert.Equal(t, int64(1), am.GotBidsMeter.Count())
	assert.Equal(t, int64(1), am.NoBidMeter.Count())
	assert.Equal(t, int64(1), am.ErrorMeters[AdapterErrorBadServerResponse].Count())
	assert.Equal(t, int64(0), am.ErrorMeters[AdapterErrorTimeout].Count())
	assert.Equal(t, int64(3), am.InvalidBidsMeter.Count())
	assert.Equal(t, int64(2), am.BidsReceivedMeter.Count())
	assert.Equal(t, int64(1), am.DealBidsMeter.Count())
	assert.Equal(t, int64(1062), am.PriceHistogram.Max())
	assert.Equal(t, int64(1), am.RequestTimer.Count(), "errored calls are not timed")
	assert.Equal(t, int64(1), am.PanicMeter.Count())
}

func TestRecordUnknownAdapter(t *testing.T) {
	m := NewMetrics(metrics.NewRegistry(), nil)

	assert.NotPanics(t, func() {
		m.RecordAdapterRequest(AdapterLabels{Adapter: "unknown", AdapterBids: AdapterBidPresent})
		m.RecordAdapterPrice(AdapterLabels{Adapter: "unknown"}, 1)
	})
}

func ensureContains(t *testing.T, registry metrics.Registry, name string, metric interface{}) {
	t.Helper()
	if inRegistry := registry.Get(name); inRegistry == nil {
		t.Errorf("No metric in registry at %s.", name)
	} else if inRegistry != metric {
		t.Errorf("Bad value stored at metric %s.", name)
	}
}
