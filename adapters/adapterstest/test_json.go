package adapterstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/prebid/header-adapters/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// RunJSONBidderTest is a helper method intended to unit test Bidders' adapters.
// It requires that:
//
//   - Bidders communicate with external servers over HTTP.
//   - The Bidder implementation uses the same endpoint for all requests.
//
// More assumptions may be added as more Bidders are written.
//
// rootDir must contain the following subdirectories:
//
//	exemplary: JSON files which demonstrate desired, common behavior. No errors may be returned.
//	supplemental: JSON files which exercise edge cases or error paths.
//
// Any subdirectory which does not exist is skipped. Every file is a JSON-encoded testSpec.
func RunJSONBidderTest(t *testing.T, rootDir string, bidder adapters.Bidder) {
	runTests(t, filepath.Join(rootDir, "exemplary"), bidder, false)
	runTests(t, filepath.Join(rootDir, "supplemental"), bidder, true)
}

func runTests(t *testing.T, directory string, bidder adapters.Bidder, allowErrors bool) {
	t.Helper()
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		return
	}

	files, err := os.ReadDir(directory)
	require.NoError(t, err, "Failed to read folder %s", directory)

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		filename := filepath.Join(directory, file.Name())
		t.Run(strings.TrimSuffix(file.Name(), ".json"), func(t *testing.T) {
			spec, err := loadFile(filename)
			require.NoError(t, err, "Failed to load contents of file %s", filename)

			if !allowErrors && spec.expectsErrors() {
				t.Fatalf("Exemplary spec %s must not expect errors.", filename)
			}
			runSpec(t, filename, spec, bidder)
		})
	}
}

// loadFile reads and parses a file as a test case. If something goes wrong, it returns an error.
func loadFile(filename string) (*testSpec, error) {
	specData, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read file %s: %v", filename, err)
	}

	var spec testSpec
	if err := json.Unmarshal(specData, &spec); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal JSON from file: %v", err)
	}
	return &spec, nil
}

// runSpec runs a single test case: validation, request building and response interpretation.
func runSpec(t *testing.T, filename string, spec *testSpec, bidder adapters.Bidder) {
	if len(spec.ExpectedValid) > 0 {
		require.Len(t, spec.ExpectedValid, len(spec.BidRequests), "%s: expectedValid must have one entry per bid request", filename)
		for i, bid := range spec.BidRequests {
			assert.Equal(t, spec.ExpectedValid[i], bidder.IsBidRequestValid(bid), "%s: bidRequests[%d] validity", filename, i)
		}
	}

	requests, errs := bidder.BuildRequests(spec.BidRequests, spec.BidderRequest)
	diffErrorLists(t, fmt.Sprintf("%s: BuildRequests", filename), errs, spec.BuildRequestsErrors)

	require.Len(t, requests, len(spec.HttpCalls), "%s: BuildRequests returned an unexpected number of requests", filename)

	var bids []*adapters.Bid
	var bidErrs []error
	for i, call := range spec.HttpCalls {
		diffHttpRequests(t, fmt.Sprintf("%s: httpCalls[%d].expectedRequest", filename, i), requests[i], &call.Request)

		response := &adapters.ServerResponse{
			StatusCode: call.Response.Status,
			Body:       call.Response.Body,
			Headers:    call.Response.Headers,
		}
		callBids, callErrs := bidder.InterpretResponse(response, requests[i])
		bids = append(bids, callBids...)
		bidErrs = append(bidErrs, callErrs...)
	}

	diffErrorLists(t, fmt.Sprintf("%s: InterpretResponse", filename), bidErrs, spec.InterpretResponseErrors)
	if bids == nil {
		bids = []*adapters.Bid{}
	}
	if spec.ExpectedBids == nil {
		spec.ExpectedBids = json.RawMessage("[]")
	}
	// gojsondiff compares objects only.
	actualBids, err := json.Marshal(map[string]interface{}{"bids": bids})
	require.NoError(t, err, "%s: failed to marshal actual bids", filename)
	expectedBids, err := json.Marshal(map[string]json.RawMessage{"bids": spec.ExpectedBids})
	require.NoError(t, err, "%s: failed to marshal expected bids", filename)
	diffJson(t, fmt.Sprintf("%s: expectedBids", filename), actualBids, expectedBids)
}

type testSpec struct {
	BidRequests             []*adapters.BidRequest  `json:"bidRequests"`
	BidderRequest           *adapters.BidderRequest `json:"bidderRequest"`
	ExpectedValid           []bool                  `json:"expectedValid,omitempty"`
	HttpCalls               []httpCall              `json:"httpCalls"`
	ExpectedBids            json.RawMessage         `json:"expectedBids"`
	BuildRequestsErrors     []testSpecExpectedError `json:"expectedBuildRequestsErrors,omitempty"`
	InterpretResponseErrors []testSpecExpectedError `json:"expectedInterpretResponseErrors,omitempty"`
}

func (spec *testSpec) expectsErrors() bool {
	return len(spec.BuildRequestsErrors) > 0 || len(spec.InterpretResponseErrors) > 0
}

type testSpecExpectedError struct {
	Value      string `json:"value"`
	Comparison string `json:"comparison"`
}

type httpCall struct {
	Request  httpRequest  `json:"expectedRequest"`
	Response httpResponse `json:"mockResponse"`
}

type httpRequest struct {
	Method  string          `json:"method"`
	Uri     string          `json:"uri"`
	Body    json.RawMessage `json:"body"`
	Headers http.Header     `json:"headers"`
}

type httpResponse struct {
	Status  int             `json:"status"`
	Body    json.RawMessage `json:"body"`
	Headers http.Header     `json:"headers"`
}

// diffErrorLists checks the actual errors against the expected ones, in order.
// A "regex" comparison matches the message against a pattern; anything else is a literal match.
func diffErrorLists(t *testing.T, description string, actual []error, expected []testSpecExpectedError) {
	t.Helper()

	if !assert.Len(t, actual, len(expected), "%s had wrong error count. Got %v", description, actual) {
		return
	}
	for i := range expected {
		if expected[i].Comparison == "regex" {
			matched, err := regexp.MatchString(expected[i].Value, actual[i].Error())
			require.NoError(t, err, "%s: invalid regex %q", description, expected[i].Value)
			assert.True(t, matched, "%s error[%d] %q does not match %q", description, i, actual[i].Error(), expected[i].Value)
		} else {
			assert.Equal(t, expected[i].Value, actual[i].Error(), "%s error[%d] had wrong message", description, i)
		}
	}
}

// diffHttpRequests compares the actual http request to the expected one.
// It assumes that the request bodies are JSON.
func diffHttpRequests(t *testing.T, description string, actual *adapters.ServerRequest, expected *httpRequest) {
	t.Helper()
	require.NotNil(t, actual, "Bidders cannot return nil requests. %s was nil.", description)

	if expected.Method != "" {
		assert.Equal(t, expected.Method, actual.Method, "%s had wrong method", description)
	}
	assert.Equal(t, expected.Uri, actual.URL, "%s had wrong uri", description)
	for key := range expected.Headers {
		assert.Equal(t, expected.Headers.Get(key), actual.Headers.Get(key), "%s had wrong header %s", description, key)
	}
	diffJson(t, description, actual.Data, expected.Body)
}

// diffJson compares two JSON byte arrays for structural equality. It will produce an error if either
// byte array is not actually JSON.
func diffJson(t *testing.T, description string, actual []byte, expected []byte) {
	t.Helper()

	if len(actual) == 0 && len(expected) == 0 {
		return
	}
	if len(actual) == 0 || len(expected) == 0 {
		t.Fatalf("%s json diff failed. Expected %d bytes in body, but got %d.", description, len(expected), len(actual))
	}

	diff, err := gojsondiff.New().Compare(actual, expected)
	if err != nil {
		t.Fatalf("%s json diff failed. %v", description, err)
	}

	if diff.Modified() {
		var left interface{}
		if err := json.Unmarshal(actual, &left); err != nil {
			t.Fatalf("%s json did not match, but unmarshalling failed. %v", description, err)
		}
		printer := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
			ShowArrayIndex: true,
		})
		output, err := printer.Format(diff)
		if err != nil {
			t.Errorf("%s did not match, but diff formatting failed. %v", description, err)
		} else {
			t.Errorf("%s json did not match expected.\n\n%s", description, output)
		}
	}
}
