package ratelimit

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// ForwardingHeaders are consulted in order before falling back to the peer address.
var ForwardingHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_X_FORWARDED_FOR",
	"HTTP_X_FORWARDED",
	"HTTP_CLIENT_IP",
}

// ClientIP resolves the caller address from the first usable forwarding header.
// Only the first element of a comma separated list is kept.
func ClientIP(header func(name string) string, peer string) string {
	for _, name := range ForwardingHeaders {
		v := strings.TrimSpace(header(name))
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	return peer
}

// RequestIP applies ClientIP to a fasthttp request.
func RequestIP(ctx *fasthttp.RequestCtx) string {
	return ClientIP(func(name string) string {
		return string(ctx.Request.Header.Peek(name))
	}, ctx.RemoteIP().String())
}
