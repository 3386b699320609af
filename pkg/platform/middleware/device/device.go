// Package device summarizes the caller's client from the User-Agent header
// so audit events can record what kind of client performed an operation.
package device

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

// Get retrieves the device summary from the context.
func Get(ctx context.Context) string {
	if d, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return d
	}
	return ""
}

// With injects a device summary into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func With(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}

// Middleware parses the User-Agent header into a compact summary and stores
// it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(With(r.Context(), Summarize(raw))))
	})
}

// Summarize reduces a raw User-Agent to "Browser version on OS" (or the raw
// string when it does not parse as a browser).
func Summarize(raw string) string {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	os := ua.OS()
	if os == "" {
		return fmt.Sprintf("%s %s", name, version)
	}
	return fmt.Sprintf("%s %s on %s", name, version, os)
}
