package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/supplysync/internal/core"
)

// withClient attaches the caller's address and User-Agent so import logs
// can name who uploaded or applied a file.
func withClient(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}

// clientIP is RemoteAddr without its port. TrustedRealIP has already
// replaced it with the forwarded address when the proxy is trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
