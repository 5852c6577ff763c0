package sqlstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

const auditColumns = `id, user_id, action, resource_type, resource_id, ip_address, detail, status, created_at`

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Log creates a new audit log entry
func (r *AuditLogRepository) Log(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES (
			:id, :user_id, :action, :resource_type, :resource_id,
			:ip_address, :detail, :status, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

// GetByUserID lists audit logs for a specific user
func (r *AuditLogRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	query := `
		SELECT ` + auditColumns + ` FROM audit_logs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), userID, limit)
	return entries, err
}

// GetRecentLogs lists the most recent audit logs
func (r *AuditLogRepository) GetRecentLogs(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	query := `
		SELECT ` + auditColumns + ` FROM audit_logs
		ORDER BY created_at DESC
		LIMIT ?`

	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), limit)
	return entries, err
}
