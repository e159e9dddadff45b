package projection

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type userPayload struct {
	ContactInfo *struct {
		PrimaryEmail *string `json:"primary_email"`
		Phone        *string `json:"phone"`
	} `json:"contact_info"`
	Profile *struct {
		DisplayName *string `json:"display_name"`
		Avatar      *string `json:"avatar"`
		Bio         *string `json:"bio"`
	} `json:"profile"`
	Version   intField `json:"version"`
	DeletedAt *string  `json:"deleted_at"`
	CreatedAt *string  `json:"created_at"`
	UpdatedAt *string  `json:"updated_at"`
}

type deletedPayload struct {
	DeletedAt *string `json:"deleted_at"`
}

type UserProjector struct {
	store  UserStore
	logger *slog.Logger
}

func NewUserProjector(store UserStore, logger *slog.Logger) *UserProjector {
	return &UserProjector{store: store, logger: logger}
}

func (p *UserProjector) Register(r *registry.Registry) error {
	for _, t := range []events.Type{events.UserCreated, events.UserUpdated} {
		if err := registry.Handle(r, t, p.upsert); err != nil {
			return err
		}
	}
	return registry.Handle(r, events.UserDeleted, p.delete)
}

func (p *UserProjector) upsert(ctx context.Context, env events.Envelope, in userPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	row := storage.UserRow{
		UserID:    info.entityID,
		Version:   in.Version.ptr(),
		DeletedAt: parseTime(in.DeletedAt),
		CreatedAt: timeOr(in.CreatedAt, info.at),
		UpdatedAt: timeOr(in.UpdatedAt, info.at),
		Audit:     info.audit,
	}
	if c := in.ContactInfo; c != nil {
		row.Email = str(c.PrimaryEmail)
		row.Phone = c.Phone
	}
	if pr := in.Profile; pr != nil {
		row.DisplayName = str(pr.DisplayName)
		row.Avatar = pr.Avatar
		row.Bio = pr.Bio
	}
	return p.store.UpsertUser(ctx, row)
}

func (p *UserProjector) delete(ctx context.Context, env events.Envelope, in deletedPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	err = p.store.SoftDeleteUser(ctx, info.entityID, timeOr(in.DeletedAt, info.at), info.audit)
	return missingRow(p.logger, env, err)
}
