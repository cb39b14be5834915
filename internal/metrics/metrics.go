package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camagru_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Editing Metrics
	PhotosCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_photos_created_total",
			Help: "Total number of saved photos",
		},
		[]string{"kind"},
	)

	PhotosDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "camagru_photos_deleted_total",
			Help: "Total number of deleted photos",
		},
	)

	CompositingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camagru_compositing_duration_seconds",
			Help:    "Time spent decoding, compositing and encoding one request",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"kind", "status"},
	)

	StickersPerRequest = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camagru_stickers_per_request",
			Help:    "Number of stickers placed per compositing request",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	GIFFrames = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camagru_gif_frames",
			Help:    "Number of frames per animated GIF",
			Buckets: []float64{2, 4, 8, 16, 32, 64},
		},
	)

	EncodedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camagru_encoded_bytes",
			Help:    "Size of encoded output files in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12), // 16KB to 32MB
		},
		[]string{"kind"},
	)

	// Social Metrics
	LikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_likes_total",
			Help: "Total number of like and unlike actions",
		},
		[]string{"action"},
	)

	CommentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "camagru_comments_total",
			Help: "Total number of comments posted",
		},
	)

	// Auth Metrics
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_auth_events_total",
			Help: "Total number of authentication events",
		},
		[]string{"event", "result"},
	)

	TokensCleanedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_tokens_cleaned_total",
			Help: "Total number of stale account tokens cleared",
		},
		[]string{"type"},
	)

	// Email Metrics
	EmailsQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_emails_queued_total",
			Help: "Total number of e-mails queued",
		},
		[]string{"kind"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_emails_sent_total",
			Help: "Total number of e-mail delivery attempts",
		},
		[]string{"kind", "status"},
	)

	EmailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camagru_email_queue_depth",
			Help: "Number of e-mails waiting in queue",
		},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_events_published_total",
			Help: "Total number of activity events published",
		},
		[]string{"type", "status"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_events_consumed_total",
			Help: "Total number of activity events consumed by the worker",
		},
		[]string{"type"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camagru_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camagru_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camagru_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordCompositing records one save or GIF pipeline run
func RecordCompositing(kind string, frames, stickers int, duration float64, err error) {
	CompositingDuration.WithLabelValues(kind, status(err)).Observe(duration)
	StickersPerRequest.Observe(float64(stickers))
	if kind == "gif" {
		GIFFrames.Observe(float64(frames))
	}
}

// RecordPhotoCreated records a stored photo and its encoded size
func RecordPhotoCreated(kind string, size int64) {
	PhotosCreatedTotal.WithLabelValues(kind).Inc()
	if size > 0 {
		EncodedBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// RecordPhotoDeleted records a deleted photo
func RecordPhotoDeleted() {
	PhotosDeletedTotal.Inc()
}

// RecordLike records a like ("like") or unlike ("unlike")
func RecordLike(action string) {
	LikesTotal.WithLabelValues(action).Inc()
}

// RecordComment records a posted comment
func RecordComment() {
	CommentsTotal.Inc()
}

// RecordAuthEvent records an authentication event such as login or register
func RecordAuthEvent(event string, err error) {
	AuthEventsTotal.WithLabelValues(event, status(err)).Inc()
}

// RecordTokensCleaned records cleared verification or reset tokens
func RecordTokensCleaned(tokenType string, n int64) {
	TokensCleanedTotal.WithLabelValues(tokenType).Add(float64(n))
}

// RecordEmailQueued records an e-mail handed to the queue
func RecordEmailQueued(kind string) {
	EmailsQueuedTotal.WithLabelValues(kind).Inc()
}

// RecordEmailSent records an SMTP delivery attempt
func RecordEmailSent(kind string, err error) {
	EmailsSentTotal.WithLabelValues(kind, status(err)).Inc()
}

// UpdateEmailQueueDepth sets the current e-mail queue depth
func UpdateEmailQueueDepth(depth int) {
	EmailQueueDepth.Set(float64(depth))
}

// RecordEventPublished records a published activity event
func RecordEventPublished(eventType string, err error) {
	EventsPublishedTotal.WithLabelValues(eventType, status(err)).Inc()
}

// RecordEventConsumed records an activity event seen by the worker
func RecordEventConsumed(eventType string) {
	EventsConsumedTotal.WithLabelValues(eventType).Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
