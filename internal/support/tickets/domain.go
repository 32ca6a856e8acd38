// Package tickets serves support tickets. Managers see their department's
// tickets, employees the ones they raised.
package tickets

import (
	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Ticket states.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// TicketFull carries the client contact and the assignee profile.
type TicketFull struct {
	entity.Ticket
	Client   *entity.Contact `json:"client"`
	Assignee *entity.Profile `json:"assignee"`
}

// ListRequest filters a ticket listing.
type ListRequest struct {
	Status     string
	Priority   string
	AssigneeID *uuid.UUID
	Limit      int
	Offset     int
}

// CreateInput opens a ticket.
type CreateInput struct {
	Subject     string     `json:"subject" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=8000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ClientID    *uuid.UUID `json:"client_id"`
}

func (in CreateInput) record() storage.Record {
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	rec := storage.Record{
		"subject":     in.Subject,
		"status":      StatusOpen,
		"priority":    priority,
		"description": nil,
		"client_id":   nil,
		"assignee_id": nil,
	}
	if in.Description != nil {
		rec["description"] = *in.Description
	}
	if in.ClientID != nil {
		rec["client_id"] = *in.ClientID
	}
	return rec
}

// UpdateInput patches a ticket. Assignment goes through Assign.
type UpdateInput struct {
	Subject     *string `json:"subject" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=8000"`
	Status      *string `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

func (in UpdateInput) record() storage.Record {
	rec := storage.Record{}
	for col, v := range map[string]*string{
		"subject":     in.Subject,
		"description": in.Description,
		"status":      in.Status,
		"priority":    in.Priority,
	} {
		if v != nil {
			rec[col] = *v
		}
	}
	return rec
}

// AssignInput routes a ticket to a profile.
type AssignInput struct {
	AssigneeID uuid.UUID `json:"assignee_id" validate:"required"`
}
