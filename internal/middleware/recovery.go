package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"bazaar-economy-api/pkg/apierror"
)

// Recovery converts handler panics into a 500 response. The stack is
// logged with the request id so the failing request can be traced.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC [%s] %s %s: %v\n%s",
					GetRequestID(r.Context()), r.Method, r.URL.Path, err, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write(apierror.InternalError("internal server error").ToJSON())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
