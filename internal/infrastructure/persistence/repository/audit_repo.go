package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository and port.AuditSink
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an audit row
func (r *AuditRepository) Create(ctx context.Context, e *entity.AuditEntry) error {
	changes, err := marshalJSON(e.Changes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, changes, source_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.ActorID, e.Action, e.EntityType, e.EntityID, changes, nullString(e.SourceAddress), utc(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// Record implements port.AuditSink
func (r *AuditRepository) Record(ctx context.Context, e *entity.AuditEntry) error {
	return r.Create(ctx, e)
}

// ListByEntity returns audit rows for an entity oldest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType entity.EntityType, entityID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, changes, source_address, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var (
			e       entity.AuditEntry
			changes sql.NullString
			source  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &changes, &source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := unmarshalJSON(changes, &e.Changes); err != nil {
			return nil, err
		}
		e.SourceAddress = source.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var (
	_ port.AuditRepository = (*AuditRepository)(nil)
	_ port.AuditSink       = (*AuditRepository)(nil)
)
