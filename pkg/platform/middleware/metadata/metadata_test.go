package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "first forwarded address", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, want: "10.0.0.1"},
		{name: "real ip header", headers: map[string]string{"X-Real-IP": " 10.0.0.3 "}, want: "10.0.0.3"},
		{name: "remote addr without port", remote: "192.168.1.5:4312", want: "192.168.1.5"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:4312", want: "2001:db8::1"},
		{name: "remote addr that is only a host", remote: "192.168.1.6", want: "192.168.1.6"},
		{name: "nothing known", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req))
		})
	}
}

func TestClientMetadataStoresIP(t *testing.T) {
	var got string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/runs", nil)
	req.Header.Set("X-Real-IP", "10.1.2.3")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.1.2.3", got)
}
