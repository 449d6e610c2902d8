package errs

import (
	"net/http"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_MapsKindToStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Newf(InvalidInput, "bad param %s", "base")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(Upstream, stderrors.New("boom"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(New(CacheUnavailable, stderrors.New("boom"))))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(ConnectFailed, stderrors.New("boom"))))
}

func TestHTTPStatus_DefaultsTo500ForUnrecognizedErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain error")))
}

func TestNewUpstreamTimeout_Maps504(t *testing.T) {
	err := NewUpstreamTimeout(stderrors.New("context deadline exceeded"))
	assert.Equal(t, http.StatusGatewayTimeout, err.Status)
	assert.Equal(t, Upstream, err.Kind)
}

func TestErrorsAs_UnwrapsToAdapterError(t *testing.T) {
	wrapped := New(Upstream, stderrors.New("provider down")).WithProviderStatus(503)

	var target *Error
	assert.True(t, stderrors.As(error(wrapped), &target))
	assert.Equal(t, 503, target.ProviderStatusCode)
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(stderrors.New("plain")))
}
