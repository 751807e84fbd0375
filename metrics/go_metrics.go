package metrics

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/prebid/header-adapters/openrtb_ext"
	metrics "github.com/rcrowley/go-metrics"
)

// Metrics is the go-metrics implementation of the MetricsEngine. Every meter is registered up front
// so the reporter sends zeros instead of gaps.
type Metrics struct {
	MetricsRegistry metrics.Registry

	ConnectionCounter      metrics.Counter
	ConnectionAcceptErrors metrics.Meter
	ConnectionCloseErrors  metrics.Meter
	RequestStatuses        map[RequestType]map[RequestStatus]metrics.Meter
	RequestTimers          map[RequestType]metrics.Timer

	AdapterMetrics map[openrtb_ext.BidderName]*AdapterMetrics

	exchanges []openrtb_ext.BidderName
}

// AdapterMetrics houses the metrics for a particular adapter
type AdapterMetrics struct {
	NoBidMeter        metrics.Meter
	GotBidsMeter      metrics.Meter
	InvalidBidsMeter  metrics.Meter
	PanicMeter        metrics.Meter
	BidsReceivedMeter metrics.Meter
	DealBidsMeter     metrics.Meter
	RequestTimer      metrics.Timer
	PriceHistogram    metrics.Histogram
	ErrorMeters       map[AdapterError]metrics.Meter
}

// NewMetrics creates a new Metrics object with all the metrics registered for the given adapters.
func NewMetrics(registry metrics.Registry, exchanges []openrtb_ext.BidderName) *Metrics {
	newMetrics := &Metrics{
		MetricsRegistry:        registry,
		ConnectionCounter:      metrics.GetOrRegisterCounter("active_connections", registry),
		ConnectionAcceptErrors: metrics.GetOrRegisterMeter("connection_accept_errors", registry),
		ConnectionCloseErrors:  metrics.GetOrRegisterMeter("connection_close_errors", registry),
		RequestStatuses:        make(map[RequestType]map[RequestStatus]metrics.Meter),
		RequestTimers:          make(map[RequestType]metrics.Timer),
		AdapterMetrics:         make(map[openrtb_ext.BidderName]*AdapterMetrics, len(exchanges)),
		exchanges:              exchanges,
	}

	for _, rType := range RequestTypes() {
		statuses := make(map[RequestStatus]metrics.Meter)
		for _, status := range RequestStatuses() {
			statuses[status] = metrics.GetOrRegisterMeter(fmt.Sprintf("requests.%s.%s", string(status), string(rType)), registry)
		}
		newMetrics.RequestStatuses[rType] = statuses
		newMetrics.RequestTimers[rType] = metrics.GetOrRegisterTimer(fmt.Sprintf("request_time.%s", string(rType)), registry)
	}

	for _, exchange := range exchanges {
		newMetrics.AdapterMetrics[exchange] = makeAdapterMetrics(registry, exchange)
	}
	return newMetrics
}

func makeAdapterMetrics(registry metrics.Registry, exchange openrtb_ext.BidderName) *AdapterMetrics {
	prefix := fmt.Sprintf("adapter.%s", string(exchange))
	am := &AdapterMetrics{
		NoBidMeter:        metrics.GetOrRegisterMeter(prefix+".requests.nobid", registry),
		GotBidsMeter:      metrics.GetOrRegisterMeter(prefix+".requests.gotbids", registry),
		InvalidBidsMeter:  metrics.GetOrRegisterMeter(prefix+".invalid_bids", registry),
		PanicMeter:        metrics.GetOrRegisterMeter(prefix+".requests.panic", registry),
		BidsReceivedMeter: metrics.GetOrRegisterMeter(prefix+".bids_received", registry),
		DealBidsMeter:     metrics.GetOrRegisterMeter(prefix+".deal_bids_received", registry),
		RequestTimer:      metrics.GetOrRegisterTimer(prefix+".request_time", registry),
		PriceHistogram:    metrics.GetOrRegisterHistogram(prefix+".prices", registry, metrics.NewExpDecaySample(1028, 0.015)),
		ErrorMeters:       make(map[AdapterError]metrics.Meter),
	}
	for _, err := range AdapterErrors() {
		am.ErrorMeters[err] = metrics.GetOrRegisterMeter(fmt.Sprintf("%s.requests.%s", prefix, string(err)), registry)
	}
	return am
}

func (me *Metrics) adapterMetrics(adapter openrtb_ext.BidderName) (*AdapterMetrics, bool) {
	am, ok := me.AdapterMetrics[adapter]
	if !ok {
		glog.Errorf("Trying to run adapter metrics on %s: adapter metrics not found", string(adapter))
	}
	return am, ok
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.ConnectionCounter.Inc(1)
	} else {
		me.ConnectionAcceptErrors.Mark(1)
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.ConnectionCounter.Dec(1)
	} else {
		me.ConnectionCloseErrors.Mark(1)
	}
}

func (me *Metrics) RecordRequest(labels Labels) {
	if statuses, ok := me.RequestStatuses[labels.RType]; ok {
		if meter, ok := statuses[labels.RequestStatus]; ok {
			meter.Mark(1)
		}
	}
}

// RecordRequestTime implements a part of the MetricsEngine interface. Only successful requests are timed.
func (me *Metrics) RecordRequestTime(labels Labels, length time.Duration) {
	if labels.RequestStatus != RequestStatusOK {
		return
	}
	if timer, ok := me.RequestTimers[labels.RType]; ok {
		timer.Update(length)
	}
}

func (me *Metrics) RecordAdapterRequest(labels AdapterLabels) {
	am, ok := me.adapterMetrics(labels.Adapter)
	if !ok {
		return
	}

	switch labels.AdapterBids {
	case AdapterBidNone:
		am.NoBidMeter.Mark(1)
	case AdapterBidPresent:
		am.GotBidsMeter.Mark(1)
	default:
		if len(labels.AdapterErrors) == 0 {
			glog.Warningf("No go-metrics logged for AdapterBids value: %s", labels.AdapterBids)
		}
	}
	for err := range labels.AdapterErrors {
		if meter, ok := am.ErrorMeters[err]; ok {
			meter.Mark(1)
		}
	}
}

func (me *Metrics) RecordAdapterInvalidBids(adapterName openrtb_ext.BidderName, count int) {
	if count <= 0 {
		return
	}
	if am, ok := me.adapterMetrics(adapterName); ok {
		am.InvalidBidsMeter.Mark(int64(count))
	}
}

func (me *Metrics) RecordAdapterPanic(labels AdapterLabels) {
	if am, ok := me.adapterMetrics(labels.Adapter); ok {
		am.PanicMeter.Mark(1)
	}
}

func (me *Metrics) RecordAdapterBidReceived(labels AdapterLabels, hasDeal bool) {
	am, ok := me.adapterMetrics(labels.Adapter)
	if !ok {
		return
	}
	am.BidsReceivedMeter.Mark(1)
	if hasDeal {
		am.DealBidsMeter.Mark(1)
	}
}

// RecordAdapterPrice records the cpm in thousandths so the integer histogram keeps its precision.
func (me *Metrics) RecordAdapterPrice(labels AdapterLabels, cpm float64) {
	if am, ok := me.adapterMetrics(labels.Adapter); ok {
		am.PriceHistogram.Update(int64(cpm*1000 + 0.5))
	}
}

// RecordAdapterTime implements a part of the MetricsEngine interface. Calls that errored are not timed.
func (me *Metrics) RecordAdapterTime(labels AdapterLabels, length time.Duration) {
	if len(labels.AdapterErrors) > 0 {
		return
	}
	if am, ok := me.adapterMetrics(labels.Adapter); ok {
		am.RequestTimer.Update(length)
	}
}
