package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/bazaarhq/storefront-api/internal/models"
)

// AuditSink is the append-only audit log contract.
type AuditSink interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// AuditLogger records security events best effort: a sink failure is logged
// and swallowed, never allowed to fail the operation being audited.
type AuditLogger struct {
	sink AuditSink
}

// NewAuditLogger constructs an AuditLogger.
func NewAuditLogger(sink AuditSink) *AuditLogger {
	return &AuditLogger{sink: sink}
}

// Record appends one audit event.
func (l *AuditLogger) Record(ctx context.Context, administratorID, action string, meta RequestMeta, metadata map[string]string) {
	if l == nil || l.sink == nil {
		return
	}

	event := &models.AuditEvent{
		AdministratorID: administratorID,
		Action:          action,
		Metadata:        metadata,
		SourceAddress:   meta.SourceAddress,
		ClientAgent:     meta.ClientAgent,
	}

	if err := l.sink.Append(ctx, event); err != nil {
		log.Error().Err(err).
			Str("administrator_id", administratorID).
			Str("action", action).
			Msg("Failed to append audit event")
	}
}
