package projection

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type address struct {
	StreetAddress1 *string `json:"street_address_1"`
	StreetAddress2 *string `json:"street_address_2"`
	City           *string `json:"city"`
	State          *string `json:"state"`
	ZipCode        *string `json:"zip_code"`
	Country        *string `json:"country"`
}

type supplierPayload struct {
	ContactInfo *struct {
		PrimaryEmail       *string `json:"primary_email"`
		PrimaryPhone       *string `json:"primary_phone"`
		ContactPersonName  *string `json:"contact_person_name"`
		ContactPersonTitle *string `json:"contact_person_title"`
		ContactPersonEmail *string `json:"contact_person_email"`
		ContactPersonPhone *string `json:"contact_person_phone"`
	} `json:"contact_info"`
	CompanyInfo *struct {
		LegalName       *string  `json:"legal_name"`
		DBAName         *string  `json:"dba_name"`
		BusinessAddress *address `json:"business_address"`
	} `json:"company_info"`
	BusinessInfo *struct {
		SupportEmail    *string `json:"support_email"`
		SupportPhone    *string `json:"support_phone"`
		FacebookURL     *string `json:"facebook_url"`
		InstagramHandle *string `json:"instagram_handle"`
		TwitterHandle   *string `json:"twitter_handle"`
		LinkedinURL     *string `json:"linkedin_url"`
		Timezone        *string `json:"timezone"`
	} `json:"business_info"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

type SupplierProjector struct {
	store  SupplierStore
	logger *slog.Logger
}

func NewSupplierProjector(store SupplierStore, logger *slog.Logger) *SupplierProjector {
	return &SupplierProjector{store: store, logger: logger}
}

func (p *SupplierProjector) Register(r *registry.Registry) error {
	for _, t := range []events.Type{events.SupplierCreated, events.SupplierUpdated} {
		if err := registry.Handle(r, t, p.upsert); err != nil {
			return err
		}
	}
	return registry.Handle(r, events.SupplierDeleted, p.delete)
}

func (p *SupplierProjector) upsert(ctx context.Context, env events.Envelope, in supplierPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	row := storage.SupplierRow{
		SupplierID: info.entityID,
		CreatedAt:  timeOr(in.CreatedAt, info.at),
		UpdatedAt:  timeOr(in.UpdatedAt, info.at),
		Audit:      info.audit,
	}
	if c := in.ContactInfo; c != nil {
		row.Email = str(c.PrimaryEmail)
		row.PrimaryPhone = str(c.PrimaryPhone)
		row.ContactPersonName = c.ContactPersonName
		row.ContactPersonTitle = c.ContactPersonTitle
		row.ContactPersonEmail = c.ContactPersonEmail
		row.ContactPersonPhone = c.ContactPersonPhone
	}
	if c := in.CompanyInfo; c != nil {
		row.LegalName = str(c.LegalName)
		row.DBAName = c.DBAName
		if a := c.BusinessAddress; a != nil {
			row.StreetAddress1 = a.StreetAddress1
			row.StreetAddress2 = a.StreetAddress2
			row.City = a.City
			row.State = a.State
			row.ZipCode = a.ZipCode
			row.Country = a.Country
		}
	}
	if b := in.BusinessInfo; b != nil {
		row.SupportEmail = b.SupportEmail
		row.SupportPhone = b.SupportPhone
		row.FacebookURL = b.FacebookURL
		row.InstagramHandle = b.InstagramHandle
		row.TwitterHandle = b.TwitterHandle
		row.LinkedinURL = b.LinkedinURL
		row.Timezone = b.Timezone
	}
	return p.store.UpsertSupplier(ctx, row)
}

func (p *SupplierProjector) delete(ctx context.Context, env events.Envelope, _ struct{}) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	return missingRow(p.logger, env, p.store.DeleteSupplier(ctx, info.entityID))
}
