package prometheusmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// preloadLabelValues creates every label combination up front so that each series is exported,
// at zero, before its first observation.
func preloadLabelValues(m *Metrics) {
	var (
		adapterErrorValues  = adapterErrorsAsString()
		adapterValues       = adaptersAsString()
		boolValues          = boolValuesAsString()
		connectionErrors    = []string{connectionAcceptError, connectionCloseError}
		requestStatusValues = requestStatusesAsString()
		requestTypeValues   = requestTypesAsString()
	)

	preloadLabelValuesForCounter(m.connectionsError, map[string][]string{
		connectionErrorLabel: connectionErrors,
	})

	preloadLabelValuesForCounter(m.requests, map[string][]string{
		requestTypeLabel:   requestTypeValues,
		requestStatusLabel: requestStatusValues,
	})

	preloadLabelValuesForHistogram(m.requestsTimer, map[string][]string{
		requestTypeLabel: requestTypeValues,
	})

	preloadLabelValuesForCounter(m.adapterBids, map[string][]string{
		adapterLabel: adapterValues,
		dealLabel:    boolValues,
	})

	preloadLabelValuesForCounter(m.adapterErrors, map[string][]string{
		adapterLabel:      adapterValues,
		adapterErrorLabel: adapterErrorValues,
	})

	preloadLabelValuesForCounter(m.adapterInvalidBids, map[string][]string{
		adapterLabel: adapterValues,
	})

	preloadLabelValuesForCounter(m.adapterPanics, map[string][]string{
		adapterLabel: adapterValues,
	})

	preloadLabelValuesForHistogram(m.adapterPrices, map[string][]string{
		adapterLabel: adapterValues,
	})

	preloadLabelValuesForCounter(m.adapterRequests, map[string][]string{
		adapterLabel: adapterValues,
		hasBidsLabel: boolValues,
	})

	preloadLabelValuesForHistogram(m.adapterRequestsTimer, map[string][]string{
		adapterLabel: adapterValues,
	})
}

func preloadLabelValuesForCounter(counter *prometheus.CounterVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		counter.With(labels)
	})
}

func preloadLabelValuesForHistogram(histogram *prometheus.HistogramVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		histogram.With(labels)
	})
}

func registerLabelPermutations(labelsWithValues map[string][]string, register func(prometheus.Labels)) {
	if len(labelsWithValues) == 0 {
		return
	}

	keys := make([]string, 0, len(labelsWithValues))
	values := make([][]string, 0, len(labelsWithValues))
	for k, v := range labelsWithValues {
		keys = append(keys, k)
		values = append(values, v)
	}

	labelPermutations := generateLabelPermutations(keys, values, 0, prometheus.Labels{}, []prometheus.Labels{})
	for _, labels := range labelPermutations {
		register(labels)
	}
}

func generateLabelPermutations(keys []string, values [][]string, index int, labels prometheus.Labels, permutations []prometheus.Labels) []prometheus.Labels {
	if index == len(keys) {
		labelsCopy := make(prometheus.Labels, len(labels))
		for k, v := range labels {
			labelsCopy[k] = v
		}
		return append(permutations, labelsCopy)
	}

	key := keys[index]
	for _, value := range values[index] {
		labels[key] = value
		permutations = generateLabelPermutations(keys, values, index+1, labels, permutations)
	}
	return permutations
}
