package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForWebSocket wraps a compression middleware handler so
// WebSocket upgrade requests bypass it. Compression middleware buffers
// the response body, which breaks the connection hijack the upgrade needs.
func SkipCompressionForWebSocket(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			compressedHandler.ServeHTTP(w, r)
		})
	}
}
