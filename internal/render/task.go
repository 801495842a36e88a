package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-faktur/internal/billing"
	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/document"
	"github.com/noah-isme/backend-faktur/internal/obs"
)

// TypeDocumentDelivery is the asynq task type for deferred render-and-email.
const TypeDocumentDelivery = "document:deliver"

// DeliveryPayload identifies the document a delivery task should process.
type DeliveryPayload struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	DocumentID uuid.UUID `json:"document_id"`
}

// NewDeliveryTask builds the asynq task for a document delivery.
func NewDeliveryTask(payload DeliveryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentDelivery, body), nil
}

// Enqueuer schedules delivery tasks on the asynq queue.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
}

// EnqueueDelivery implements document.DeliveryEnqueuer.
func (e Enqueuer) EnqueueDelivery(ctx context.Context, tenantID, documentID uuid.UUID) error {
	task, err := NewDeliveryTask(DeliveryPayload{TenantID: tenantID, DocumentID: documentID})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(5)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	_, err = e.Client.EnqueueContext(ctx, task, opts...)
	return err
}

// DocumentSource loads the document a delivery task refers to.
type DocumentSource interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (document.Document, error)
}

// DeliveryWorker renders a document and emails the artifact to the customer.
type DeliveryWorker struct {
	Docs     DocumentSource
	Renderer *PDF
	Mail     common.EmailSender
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler. Invalid documents and documents
// without a customer email are terminal failures; asynq must not retry them.
func (w DeliveryWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload DeliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode delivery payload: %v: %w", err, asynq.SkipRetry)
	}

	doc, err := w.Docs.Get(ctx, payload.TenantID, payload.DocumentID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return fmt.Errorf("document %s not found: %w", payload.DocumentID, asynq.SkipRetry)
		}
		return err
	}

	artifact, err := w.Renderer.Render(ctx, doc)
	if err != nil {
		if obs.DocumentRenderTotal != nil {
			obs.DocumentRenderTotal.WithLabelValues("failure").Inc()
		}
		var invalid *document.InvalidDocumentError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%v: %w", invalid, asynq.SkipRetry)
		}
		return err
	}
	if obs.DocumentRenderTotal != nil {
		obs.DocumentRenderTotal.WithLabelValues("success").Inc()
	}

	if doc.Customer.Email == "" {
		return fmt.Errorf("document %s has no customer email: %w", doc.Number, asynq.SkipRetry)
	}

	summary := doc.Summary()
	subject := fmt.Sprintf("%s %s from %s", doc.Title(), doc.Number, doc.Issuer.Name)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>Please find attached %s <strong>%s</strong> for %s.</p>",
		doc.Customer.Name, doc.Kind, doc.Number,
		billing.FormatMoney(summary.GrandTotal, doc.Issuer.CurrencySymbol),
	)
	err = w.Mail.Send(doc.Customer.Email, subject, html, common.Attachment{
		Filename:    doc.Number + ".pdf",
		ContentType: "application/pdf",
		Data:        artifact,
	})
	if err != nil {
		if obs.DocumentDeliveryTotal != nil {
			obs.DocumentDeliveryTotal.WithLabelValues("failure").Inc()
		}
		return err
	}
	if obs.DocumentDeliveryTotal != nil {
		obs.DocumentDeliveryTotal.WithLabelValues("success").Inc()
	}
	w.Logger.Info().
		Str("document_id", doc.ID.String()).
		Str("number", doc.Number).
		Str("to", doc.Customer.Email).
		Msg("document delivered")
	return nil
}
