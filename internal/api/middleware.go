package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api/respond"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/auth"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sidebar",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Latency of API requests by route and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method", "status"})

// Authenticate resolves the bearer token to a user and stores the actor on
// the request context. Requests without a valid token get 401.
func Authenticate(a auth.Authorizer) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				respond.WriteUnauthorized(w, err.Error())
				return
			}
			actor, err := a.Authorize(r.Context(), apiKey)
			if err != nil {
				respond.WriteUnauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog logs every request at debug level and records its latency.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		requestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// userID returns the authenticated user. Handlers only run behind Authenticate.
func userID(r *http.Request) string {
	if a, ok := auth.ActorFrom(r.Context()); ok {
		return a.UserID
	}
	return ""
}
