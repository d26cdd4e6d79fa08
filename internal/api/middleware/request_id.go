package middleware

import "net/http"

// RequestID extracts X-Request-ID from the incoming request, generating a
// fresh uuid if it is missing or malformed, and echoes it back on the
// response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || !isValidUUID(id) {
				id = generateRequestID()
			}

			r = r.WithContext(SetRequestID(r.Context(), id))
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r)
		})
	}
}
