package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bazaarhq/storefront-api/internal/models"
)

// AuditEventRepository appends to and reads the append-only audit_events
// table. There is deliberately no update or delete.
type AuditEventRepository struct {
	db *sqlx.DB
}

func NewAuditEventRepository(db *sqlx.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Append records one audit event. Metadata is stored as JSONB.
func (r *AuditEventRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, administrator_id, action, metadata, source_address, client_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.AdministratorID, event.Action, metadata, event.SourceAddress, event.ClientAgent)
	return err
}

// AuditEventFilter narrows List results. Zero values mean no filter.
type AuditEventFilter struct {
	AdministratorID string
	Action          string
	Page            int
	Limit           int
}

// List returns a page of audit events, newest first, with the total count
// matching the filter.
func (r *AuditEventRepository) List(ctx context.Context, filter AuditEventFilter) ([]models.AuditEvent, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	if filter.AdministratorID != "" {
		args = append(args, filter.AdministratorID)
		where += fmt.Sprintf(" AND administrator_id = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_events "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT id, administrator_id, action, metadata, source_address, client_agent, created_at
		FROM audit_events %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []models.AuditEvent{}
	for rows.Next() {
		var event models.AuditEvent
		var rawMetadata []byte
		if err := rows.Scan(&event.ID, &event.AdministratorID, &event.Action, &rawMetadata,
			&event.SourceAddress, &event.ClientAgent, &event.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(rawMetadata) > 0 {
			if err := json.Unmarshal(rawMetadata, &event.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}
