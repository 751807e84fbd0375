package endpoints

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusEndpoint(t *testing.T) {
	testCases := []struct {
		description    string
		response       string
		expectedStatus int
		expectedBody   string
	}{
		{
			description:    "configured-response",
			response:       "ready",
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			description:    "empty-response",
			response:       "",
			expectedStatus: http.StatusNoContent,
			expectedBody:   "",
		},
	}

	for _, test := range testCases {
		handler := NewStatusEndpoint(test.response)
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest("GET", "/status", nil), nil)

		assert.Equal(t, test.expectedStatus, recorder.Code, test.description)
		assert.Equal(t, test.expectedBody, recorder.Body.String(), test.description)
	}
}
