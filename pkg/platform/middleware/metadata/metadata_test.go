package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"etatcivil/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	t.Run("first forwarded address wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		assert.Equal(t, "10.0.0.1", ClientIPFromRequest(r))
	})

	t.Run("real ip header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", " 10.1.1.1 ")
		assert.Equal(t, "10.1.1.1", ClientIPFromRequest(r))
	})

	t.Run("remote addr without port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.168.1.4:5123"
		assert.Equal(t, "192.168.1.4", ClientIPFromRequest(r))
	})
}

func TestDevice(t *testing.T) {
	ctx := requestcontext.WithClientMetadata(context.Background(), "1.2.3.4",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	attrs := Device(ctx)
	assert.Equal(t, "browser", attrs[0])
	assert.Contains(t, attrs[1], "Chrome")

	assert.Equal(t, []any{"browser", "unknown"}, Device(context.Background()))
}
