package storage

import (
	"context"
	"time"
)

type SupplierRow struct {
	SupplierID         string
	Email              string
	PrimaryPhone       string
	ContactPersonName  *string
	ContactPersonTitle *string
	ContactPersonEmail *string
	ContactPersonPhone *string
	LegalName          string
	DBAName            *string
	StreetAddress1     *string
	StreetAddress2     *string
	City               *string
	State              *string
	ZipCode            *string
	Country            *string
	SupportEmail       *string
	SupportPhone       *string
	FacebookURL        *string
	InstagramHandle    *string
	TwitterHandle      *string
	LinkedinURL        *string
	Timezone           *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Audit
}

var suppliersTable = table{
	name: "suppliers",
	key:  []string{"supplier_id"},
	cols: []string{
		"supplier_id", "email", "primary_phone",
		"contact_person_name", "contact_person_title", "contact_person_email", "contact_person_phone",
		"legal_name", "dba_name",
		"street_address_1", "street_address_2", "city", "state", "zip_code", "country",
		"support_email", "support_phone", "facebook_url", "instagram_handle", "twitter_handle", "linkedin_url", "timezone",
		"created_at", "updated_at", "event_id", "event_timestamp",
	},
	immutable: []string{"created_at"},
}

var upsertSupplierSQL = suppliersTable.upsertSQL()

func (s *Store) UpsertSupplier(ctx context.Context, r SupplierRow) error {
	_, err := s.db.exec(ctx, upsertSupplierSQL,
		r.SupplierID, r.Email, r.PrimaryPhone,
		r.ContactPersonName, r.ContactPersonTitle, r.ContactPersonEmail, r.ContactPersonPhone,
		r.LegalName, r.DBAName,
		r.StreetAddress1, r.StreetAddress2, r.City, r.State, r.ZipCode, r.Country,
		r.SupportEmail, r.SupportPhone, r.FacebookURL, r.InstagramHandle, r.TwitterHandle, r.LinkedinURL, r.Timezone,
		utc(r.CreatedAt), utc(r.UpdatedAt), r.EventID, utc(r.EventTimestamp),
	)
	return err
}

func (s *Store) DeleteSupplier(ctx context.Context, supplierID string) error {
	return requireRow(s.db.exec(ctx, `DELETE FROM suppliers WHERE supplier_id = ?`, supplierID))
}
