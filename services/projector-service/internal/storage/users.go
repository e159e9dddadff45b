package storage

import (
	"context"
	"time"
)

type UserRow struct {
	UserID      string
	Email       string
	Phone       *string
	DisplayName string
	Avatar      *string
	Bio         *string
	Version     *int64
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Audit
}

var usersTable = table{
	name: "users",
	key:  []string{"user_id"},
	cols: []string{
		"user_id", "email", "phone", "display_name", "avatar", "bio", "version", "deleted_at",
		"created_at", "updated_at", "event_id", "event_timestamp",
	},
	immutable: []string{"created_at"},
}

var upsertUserSQL = usersTable.upsertSQL()

func (s *Store) UpsertUser(ctx context.Context, u UserRow) error {
	_, err := s.db.exec(ctx, upsertUserSQL,
		u.UserID, u.Email, u.Phone, u.DisplayName, u.Avatar, u.Bio, u.Version, utcPtr(u.DeletedAt),
		utc(u.CreatedAt), utc(u.UpdatedAt), u.EventID, utc(u.EventTimestamp),
	)
	return err
}

// SoftDeleteUser stamps deleted_at; ErrNotFound when the user was never
// projected.
func (s *Store) SoftDeleteUser(ctx context.Context, userID string, deletedAt time.Time, audit Audit) error {
	return requireRow(s.db.exec(ctx,
		`UPDATE users SET deleted_at = ?, event_id = ?, event_timestamp = ? WHERE user_id = ?`,
		utc(deletedAt), audit.EventID, utc(audit.EventTimestamp), userID,
	))
}
