package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "furnigo_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "furnigo_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	workflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "furnigo_post_workflow_runs_total",
		Help: "Post creation workflow runs by final state and failed step",
	}, []string{"state", "failed_step"})

	workflowStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "furnigo_post_workflow_step_duration_seconds",
		Help:    "Duration of each post creation step",
		Buckets: prometheus.DefBuckets,
	}, []string{"step", "result"})

	imageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "furnigo_image_uploads_total",
		Help: "Image uploads to object storage by bucket and result",
	}, []string{"bucket", "result"})

	graphqlRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "furnigo_graphql_requests_total",
		Help: "GraphQL operations sent to the data store by result",
	}, []string{"operation", "result"})
)

func ObserveHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func RecordWorkflowRun(state, failedStep string) {
	workflowRuns.WithLabelValues(state, failedStep).Inc()
}

func ObserveWorkflowStep(step string, err error, d time.Duration) {
	workflowStepDuration.WithLabelValues(step, result(err)).Observe(d.Seconds())
}

func RecordImageUpload(bucket string, err error) {
	imageUploads.WithLabelValues(bucket, result(err)).Inc()
}

func RecordGraphQLRequest(operation string, err error) {
	graphqlRequests.WithLabelValues(operation, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
