package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LivenessBody is the text served on GET /.
const LivenessBody = "Discord bot is running!"

// NewLivenessHandler returns the router for the hosting platform's liveness
// probe. It shares no state with the bot, so it answers regardless of the
// chat connection.
func NewLivenessHandler(body string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		logAndReturnError(w, "Not Found", http.StatusNotFound, "No route for "+r.Method+" "+r.URL.Path)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logRequest(r, ww.Status(), time.Since(start))
	})
}
