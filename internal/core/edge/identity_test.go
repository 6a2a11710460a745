package edge

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "no headers", want: UnknownClient},
		{name: "forwarded single", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, want: "1.2.3.4"},
		{name: "forwarded chain takes first", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1, 10.0.0.2"}, want: "1.2.3.4"},
		{name: "forwarded trims spaces", headers: map[string]string{"X-Forwarded-For": "  5.6.7.8 ,10.0.0.1"}, want: "5.6.7.8"},
		{name: "real ip fallback", headers: map[string]string{"X-Real-IP": "9.9.9.9"}, want: "9.9.9.9"},
		{name: "forwarded wins over real ip", headers: map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "9.9.9.9"}, want: "1.2.3.4"},
		{name: "empty first token falls back", headers: map[string]string{"X-Forwarded-For": " ,1.2.3.4", "X-Real-IP": "9.9.9.9"}, want: "9.9.9.9"},
		{name: "ipv6 canonical", headers: map[string]string{"X-Forwarded-For": "2001:DB8:0:0::1"}, want: "2001:db8::1"},
		{name: "non ip token kept verbatim", headers: map[string]string{"X-Forwarded-For": "proxy-host"}, want: "proxy-host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientKey(h))
		})
	}
}

func TestClientKeyNilHeader(t *testing.T) {
	assert.Equal(t, UnknownClient, ClientKey(nil))
}

func TestCanonicalClientKey(t *testing.T) {
	assert.Equal(t, "2001:db8::1", CanonicalClientKey(" 2001:0db8::0001 "))
	assert.Equal(t, "203.0.113.9", CanonicalClientKey("203.0.113.9"))
	assert.Equal(t, "10.0.0.0/8", CanonicalClientKey("10.0.0.0/8"))
	assert.Empty(t, CanonicalClientKey("  "))
}
