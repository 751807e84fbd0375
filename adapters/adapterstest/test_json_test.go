package adapterstest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		"bidRequests": [{"bidder":"triplelift","bidId":"1"}],
		"httpCalls": [{"expectedRequest":{"uri":"https://example.com"},"mockResponse":{"status":204}}],
		"expectedBuildRequestsErrors": [{"value":"boom","comparison":"literal"}]
	}`), 0644))

	spec, err := loadFile(filename)
	require.NoError(t, err)
	require.Len(t, spec.BidRequests, 1)
	assert.Equal(t, "1", spec.BidRequests[0].BidID)
	require.Len(t, spec.HttpCalls, 1)
	assert.Equal(t, 204, spec.HttpCalls[0].Response.Status)
	assert.True(t, spec.expectsErrors())

	_, err = loadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDiffErrorLists(t *testing.T) {
	diffErrorLists(t, "literal", []error{errors.New("exact message")}, []testSpecExpectedError{
		{Value: "exact message", Comparison: "literal"},
	})
	diffErrorLists(t, "regex", []error{errors.New("unable to parse response body: bad")}, []testSpecExpectedError{
		{Value: "^unable to parse response body: .*", Comparison: "regex"},
	})
	diffErrorLists(t, "none", nil, nil)
}

func TestDiffJson(t *testing.T) {
	diffJson(t, "reordered keys", []byte(`{"a":1,"b":[1,2]}`), []byte(`{"b":[1,2],"a":1}`))
	diffJson(t, "both empty", nil, nil)
}
