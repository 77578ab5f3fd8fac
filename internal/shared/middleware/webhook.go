package middleware

import (
	"crypto/subtle"
	"net/http"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects requests whose X-Webhook-Secret header does not
// match. An empty secret disables the check.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(WebhookSecretHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
