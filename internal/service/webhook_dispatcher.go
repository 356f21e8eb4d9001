package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	"github.com/noah-isme/irshad-lms-api/pkg/jobs"
	"github.com/noah-isme/irshad-lms-api/pkg/webhook"
)

const (
	jobTypeRequestWebhook    = "webhook.request"
	jobTypeEnrollmentWebhook = "webhook.enrollment"
)

type webhookDelivery struct {
	URL     string
	Payload interface{}
}

// WebhookDispatcher delivers outbound webhooks through the background job
// queue. Delivery is best effort: an unconfigured URL drops the payload with a
// warning and failures never surface to the triggering request.
type WebhookDispatcher struct {
	queue         *jobs.Queue
	client        *webhook.Client
	requestURL    string
	enrollmentURL string
	logger        *zap.Logger
}

// WebhookDispatcherConfig wires endpoint URLs and queue sizing.
type WebhookDispatcherConfig struct {
	RequestURL    string
	EnrollmentURL string
	Workers       int
	Logger        *zap.Logger
}

// NewWebhookDispatcher constructs the dispatcher and its queue. Call Start
// before enqueuing.
func NewWebhookDispatcher(client *webhook.Client, cfg WebhookDispatcherConfig) *WebhookDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &WebhookDispatcher{
		client:        client,
		requestURL:    cfg.RequestURL,
		enrollmentURL: cfg.EnrollmentURL,
		logger:        logger,
	}
	d.queue = jobs.NewQueue("webhooks", d.handle, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return d
}

// Start launches the delivery workers.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (d *WebhookDispatcher) Stop() {
	d.queue.Stop()
}

// DispatchRequest enqueues a bayat or guidance submission webhook.
func (d *WebhookDispatcher) DispatchRequest(payload models.RequestWebhookPayload) {
	d.dispatch(jobTypeRequestWebhook, d.requestURL, payload)
}

// DispatchEnrollment enqueues an enrollment submission webhook.
func (d *WebhookDispatcher) DispatchEnrollment(payload models.EnrollmentWebhookPayload) {
	d.dispatch(jobTypeEnrollmentWebhook, d.enrollmentURL, payload)
}

func (d *WebhookDispatcher) dispatch(jobType, url string, payload interface{}) {
	if url == "" {
		d.logger.Warn("webhook endpoint not configured, dropping payload", zap.String("type", jobType))
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: webhookDelivery{URL: url, Payload: payload},
	}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Warn("failed to enqueue webhook", zap.String("type", jobType), zap.Error(err))
	}
}

func (d *WebhookDispatcher) handle(ctx context.Context, job jobs.Job) error {
	delivery, ok := job.Payload.(webhookDelivery)
	if !ok {
		return fmt.Errorf("unexpected webhook payload type %T", job.Payload)
	}
	return d.client.Post(ctx, delivery.URL, delivery.Payload)
}
