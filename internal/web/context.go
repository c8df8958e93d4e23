package web

import (
	"context"
	"net"
	"net/http"

	"github.com/traumaregistry/intake/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to the context so
// they are copied into the run report.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithRequester(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
