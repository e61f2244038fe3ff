package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser clients from configured origins to reach the API.
func CORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
