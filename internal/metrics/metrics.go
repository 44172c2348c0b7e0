package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voting"

var (
	httpRequestsTotal   *prometheus.CounterVec
	votesTotal          *prometheus.CounterVec
	voteEventsProcessed prometheus.Counter
	voteEventsDropped   prometheus.Counter
	registerOnce        sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the voting API.",
		}, []string{"method", "path", "status"})

		votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Vote attempts by outcome.",
		}, []string{"outcome"})

		voteEventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_events_processed_total",
			Help:      "Vote events consumed by the background worker.",
		})

		voteEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_events_dropped_total",
			Help:      "Vote events dropped because the worker queue was full.",
		})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IncVote records one vote attempt. outcome is "accepted" or the error code
// returned to the client.
func IncVote(outcome string) {
	if votesTotal == nil {
		return
	}
	votesTotal.WithLabelValues(outcome).Inc()
}

func IncVoteEventProcessed() {
	if voteEventsProcessed == nil {
		return
	}
	voteEventsProcessed.Inc()
}

func IncVoteEventDropped() {
	if voteEventsDropped == nil {
		return
	}
	voteEventsDropped.Inc()
}
