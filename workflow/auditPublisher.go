package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const auditPublishTimeout = 10 * time.Second

// AuditPublisher stores audit entries and, when enabled, fans each one out on Pub/Sub.
// The stored row is authoritative; a publish failure is logged and does not fail the save.
type AuditPublisher struct {
	Log     AuditLog
	Enabled bool
	Publish func(ctx context.Context, msg config.AuditEventMessage) (string, error)
	Logger  *logrus.Logger
}

func NewAuditPublisher(log AuditLog, logger *logrus.Logger) *AuditPublisher {
	return &AuditPublisher{
		Log:     log,
		Enabled: config.AuditPubSubEnabled(),
		Publish: config.PublishAuditEvent,
		Logger:  logger,
	}
}

func (p *AuditPublisher) Append(ctx context.Context, entry *models.History) error {
	if err := p.Log.Append(ctx, entry); err != nil {
		return err
	}
	if !p.Enabled || p.Publish == nil {
		return nil
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.AuditEventMessage{
		HistoryId:     entry.ID,
		BusinessId:    entry.BusinessId,
		EntityType:    entry.EntityType,
		EntityId:      entry.EntityId,
		Action:        entry.Action,
		Details:       entry.Details,
		Actor:         entry.UserName,
		OccurredAt:    entry.CreatedAt,
		CorrelationId: correlationId,
	}

	pubCtx, cancel := context.WithTimeout(ctx, auditPublishTimeout)
	defer cancel()
	messageId, err := p.Publish(pubCtx, msg)
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.AddEvent("audit.publish_failed", trace.WithAttributes(attribute.String("history_id", entry.ID)))
		auditPublishFailuresTotal.Inc()
		config.LogError(p.Logger, "AuditPublisher", "Append", "publish audit event", msg, err)
		return nil
	}
	span.AddEvent("audit.published", trace.WithAttributes(
		attribute.String("history_id", entry.ID),
		attribute.String("message_id", messageId),
	))
	p.Logger.WithFields(logrus.Fields{
		"history_id": entry.ID,
		"message_id": messageId,
	}).Debug("[audit.publish] sent")
	return nil
}
