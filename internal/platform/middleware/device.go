package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

// Device parses the User-Agent into a short browser/OS summary and stores it
// in the context for audit enrichment. Parsing failures leave the context
// untouched.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ua := useragent.New(raw)
		name, version := ua.Browser()
		summary := fmt.Sprintf("%s %s on %s", name, version, ua.OS())
		ctx := context.WithValue(r.Context(), contextKeyDevice{}, summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDevice retrieves the device summary from the context.
func GetDevice(ctx context.Context) string {
	if device, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return device
	}
	return ""
}

// WithDevice injects a device summary, for tests that skip the HTTP chain.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}
