package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askbox_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// GraphEdgeMutations counts follow and unfollow calls, including no-ops.
	GraphEdgeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_graph_edge_mutations_total",
		Help: "Follow graph mutations by operation",
	}, []string{"operation"})

	// TimelinePosts records how many posts each timeline page returned.
	TimelinePosts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "askbox_timeline_posts",
		Help:    "Number of posts returned per timeline page",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	})

	// TimelineAuthors records the size of the author set a timeline was built from.
	TimelineAuthors = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "askbox_timeline_authors",
		Help:    "Number of distinct authors a timeline query covered",
		Buckets: prometheus.ExponentialBuckets(1, 4, 7),
	})

	// CacheLookups counts cache-aside hits and misses by cache name.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// EventPublishFailures counts domain events that could not be published.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_event_publish_failures_total",
		Help: "Domain events dropped because the broker rejected them",
	}, []string{"backend", "type"})

	// QuestionsAsked counts created questions by visibility.
	QuestionsAsked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_questions_asked_total",
		Help: "Questions created, split by anonymous flag",
	}, []string{"anonymous"})

	// ActiveFeedConnections tracks open profile event feed sockets.
	ActiveFeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "askbox_feed_connections_active",
		Help: "Open websocket connections on profile event feeds",
	})

	// FeedDrops counts feed messages dropped for slow or closed clients.
	FeedDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_feed_dropped_messages_total",
		Help: "Feed messages dropped before reaching a client",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup counts a hit or a miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}
