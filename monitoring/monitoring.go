package monitoring

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascenik_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrascenik_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascenik_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrascenik_registrations_total",
		Help: "Accounts created.",
	})

	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrascenik_posts_created_total",
		Help: "Posts created.",
	})

	LikesChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascenik_likes_total",
		Help: "Likes added and removed.",
	}, []string{"action"})

	FollowsChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascenik_follows_total",
		Help: "Follow edges created and removed.",
	}, []string{"action"})

	FeedPosts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrascenik_feed_posts",
		Help:    "Number of posts returned per feed request.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	CascadeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrascenik_profile_cascade_failures_total",
		Help: "Profile updates whose denormalized copies could not all be refreshed.",
	})
)

// InstrumentHandler records request counts and latency labelled by the
// matched route template.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(m.Code)).Inc()
		RequestDuration.WithLabelValues(route, r.Method).Observe(m.Duration.Seconds())
	})
}
