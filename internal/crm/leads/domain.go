// Package leads serves sales leads through the access-controlled gateway and
// enriches them with their contact, company, owner and interaction summary.
package leads

import (
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Lead statuses.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusWon       = "won"
	StatusLost      = "lost"
)

// InteractionSummary aggregates the interactions logged on a lead.
type InteractionSummary struct {
	Count  int64      `json:"count"`
	LastAt *time.Time `json:"last_at,omitempty"`
}

// LeadFull is a lead with its related rows. Related rows the caller cannot
// resolve (missing or deleted) are nil.
type LeadFull struct {
	entity.Lead
	Contact      *entity.Contact    `json:"contact"`
	Company      *entity.Company    `json:"company"`
	Owner        *entity.Profile    `json:"owner"`
	Interactions InteractionSummary `json:"interactions"`
}

// ListRequest filters a lead listing.
type ListRequest struct {
	Status  string
	Source  string
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

// CreateInput is the payload for a new lead.
type CreateInput struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Status     string     `json:"status" validate:"omitempty,oneof=new contacted qualified won lost"`
	Source     *string    `json:"source" validate:"omitempty,max=64"`
	ValueCents int64      `json:"value_cents" validate:"gte=0"`
	ContactID  *uuid.UUID `json:"contact_id"`
	CompanyID  *uuid.UUID `json:"company_id"`
	Notes      *string    `json:"notes" validate:"omitempty,max=4000"`
}

func (in CreateInput) record() storage.Record {
	status := in.Status
	if status == "" {
		status = StatusNew
	}
	return storage.Record{
		"title":       in.Title,
		"status":      status,
		"source":      optional(in.Source),
		"value_cents": in.ValueCents,
		"contact_id":  optional(in.ContactID),
		"company_id":  optional(in.CompanyID),
		"notes":       optional(in.Notes),
	}
}

// UpdateInput patches a lead. Nil fields are left untouched.
type UpdateInput struct {
	Title      *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Status     *string    `json:"status" validate:"omitempty,oneof=new contacted qualified won lost"`
	Source     *string    `json:"source" validate:"omitempty,max=64"`
	ValueCents *int64     `json:"value_cents" validate:"omitempty,gte=0"`
	ContactID  *uuid.UUID `json:"contact_id"`
	CompanyID  *uuid.UUID `json:"company_id"`
	OwnerID    *uuid.UUID `json:"owner_id"`
	Notes      *string    `json:"notes" validate:"omitempty,max=4000"`
}

func (in UpdateInput) record() storage.Record {
	rec := storage.Record{}
	put(rec, "title", in.Title)
	put(rec, "status", in.Status)
	put(rec, "source", in.Source)
	put(rec, "value_cents", in.ValueCents)
	put(rec, "contact_id", in.ContactID)
	put(rec, "company_id", in.CompanyID)
	put(rec, "owner_id", in.OwnerID)
	put(rec, "notes", in.Notes)
	return rec
}

func optional[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func put[T any](rec storage.Record, col string, v *T) {
	if v != nil {
		rec[col] = *v
	}
}
