package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPResolver_ClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.0/8, 192.0.2.1")
	require.NoError(t, err)
	resolver := NewClientIPResolver(trusted)

	tests := []struct {
		name       string
		resolver   *ClientIPResolver
		remoteAddr string
		forwarded  []string
		realIP     string
		want       string
	}{
		{
			name:       "peer without headers",
			resolver:   resolver,
			remoteAddr: "198.51.100.7:5555",
			want:       "198.51.100.7",
		},
		{
			name:       "ipv6 peer",
			resolver:   resolver,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "untrusted peer spoofing both headers",
			resolver:   resolver,
			remoteAddr: "198.51.100.7:5555",
			forwarded:  []string{"203.0.113.5"},
			realIP:     "203.0.113.6",
			want:       "198.51.100.7",
		},
		{
			name:       "nil resolver ignores headers",
			resolver:   nil,
			remoteAddr: "10.1.1.1:5555",
			forwarded:  []string{"203.0.113.5"},
			realIP:     "203.0.113.6",
			want:       "10.1.1.1",
		},
		{
			name:       "trusted peer uses right-most untrusted hop",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			forwarded:  []string{"1.1.1.1, 203.0.113.5, 10.2.2.2"},
			want:       "203.0.113.5",
		},
		{
			name:       "hops split across header lines",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			forwarded:  []string{"1.1.1.1", "203.0.113.5, 192.0.2.1"},
			want:       "203.0.113.5",
		},
		{
			name:       "all hops trusted",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			forwarded:  []string{"10.3.3.3, 10.2.2.2"},
			want:       "10.3.3.3",
		},
		{
			name:       "garbage hop falls back to real ip",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			forwarded:  []string{"203.0.113.5, junk"},
			realIP:     "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "trusted peer with only real ip",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			realIP:     "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "trusted peer without headers",
			resolver:   resolver,
			remoteAddr: "10.1.1.1:5555",
			want:       "10.1.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.resolver.ClientIP(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies("")
	require.NoError(t, err)
	assert.Empty(t, prefixes)

	prefixes, err = ParseTrustedProxies("10.1.2.3/8, 2001:db8::1")
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "2001:db8::1/128", prefixes[1].String())

	_, err = ParseTrustedProxies("10.0.0.0/99")
	assert.Error(t, err)
	_, err = ParseTrustedProxies("localhost")
	assert.Error(t, err)
}
