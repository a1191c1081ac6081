package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestBasicAuth_EmptyPasswordDisablesAuth(t *testing.T) {
	handler := BasicAuth(okHandler, "director", "")

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestBasicAuth_RejectsMissingCredentials(t *testing.T) {
	handler := BasicAuth(okHandler, "director", "secret")

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, `Basic realm="shiftdirector"`, recorder.Header().Get("WWW-Authenticate"))
}

func TestBasicAuth_RejectsWrongPassword(t *testing.T) {
	handler := BasicAuth(okHandler, "director", "secret")

	request := httptest.NewRequest("GET", "/", nil)
	request.SetBasicAuth("director", "wrong")

	recorder := httptest.NewRecorder()
	handler(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestBasicAuth_AcceptsValidCredentials(t *testing.T) {
	handler := BasicAuth(okHandler, "director", "secret")

	request := httptest.NewRequest("GET", "/", nil)
	request.SetBasicAuth("director", "secret")

	recorder := httptest.NewRecorder()
	handler(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
