package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/crowdwatch-api/internal/models"
)

// CreateAuditLog stores an audit log entry.
func (r *CredentialRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, actor_kind, action, resource, resource_id, metadata, ip_address, user_agent, created_at) VALUES (:id, :actor_id, :actor_kind, :action, :resource, :resource_id, :metadata, :ip_address, :user_agent, :created_at)`
	if _, err := db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
