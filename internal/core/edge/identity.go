package edge

import (
	"net/http"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// UnknownClient is the identity used when no forwarding header is present.
const UnknownClient = "unknown"

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// ClientKey derives the rate limit identity from forwarding headers: the
// first token of X-Forwarded-For, then X-Real-IP, then UnknownClient.
// The value is not authenticated and can be spoofed by clients.
func ClientKey(header http.Header) string {
	if header == nil {
		return UnknownClient
	}

	if forwarded := header.Get(headerForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if key := CanonicalClientKey(first); key != "" {
			return key
		}
	}

	if key := CanonicalClientKey(header.Get(headerRealIP)); key != "" {
		return key
	}

	return UnknownClient
}

// CanonicalClientKey trims the token and rewrites IP literals to canonical
// form so "2001:DB8::1" and "2001:db8:0::1" share a counter. Anything that is
// not a plain address is used verbatim.
func CanonicalClientKey(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, "/") {
		return token
	}

	addr, err := ipaddr.NewIPAddressString(token).ToAddress()
	if err != nil || addr == nil {
		return token
	}
	return addr.String()
}
