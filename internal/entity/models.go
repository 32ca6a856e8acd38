package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Schemas holding business data.
const (
	SchemaCore      = "core"
	SchemaCRM       = "crm"
	SchemaSupport   = "support"
	SchemaOps       = "ops"
	SchemaKnowledge = "knowledge"
)

// Profile is a person using the system.
type Profile struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         string     `db:"role" json:"role"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// Department groups profiles.
type Department struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	ManagerID *uuid.UUID `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Company is an organisation tracked by the CRM.
type Company struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Domain    *string    `db:"domain" json:"domain,omitempty"`
	Industry  *string    `db:"industry" json:"industry,omitempty"`
	OwnerID   *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	CreatedBy uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Contact is a person at a company.
type Contact struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	CompanyID *uuid.UUID `db:"company_id" json:"company_id,omitempty"`
	OwnerID   *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	CreatedBy uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Lead is a sales opportunity.
type Lead struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Status       string     `db:"status" json:"status"`
	Source       *string    `db:"source" json:"source,omitempty"`
	ValueCents   int64      `db:"value_cents" json:"value_cents"`
	ContactID    *uuid.UUID `db:"contact_id" json:"contact_id,omitempty"`
	CompanyID    *uuid.UUID `db:"company_id" json:"company_id,omitempty"`
	OwnerID      *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy    uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// Interaction is a logged touchpoint on a lead (call, email, meeting).
type Interaction struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	LeadID     uuid.UUID  `db:"lead_id" json:"lead_id"`
	Kind       string     `db:"kind" json:"kind"`
	Summary    string     `db:"summary" json:"summary"`
	OccurredAt time.Time  `db:"occurred_at" json:"occurred_at"`
	CreatedBy  uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

// Ticket is a support request raised for a client.
type Ticket struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Subject      string     `db:"subject" json:"subject"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Status       string     `db:"status" json:"status"`
	Priority     string     `db:"priority" json:"priority"`
	ClientID     *uuid.UUID `db:"client_id" json:"client_id,omitempty"`
	AssigneeID   *uuid.UUID `db:"assignee_id" json:"assignee_id,omitempty"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedBy    uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// Task is an internal to-do item.
type Task struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Status     string     `db:"status" json:"status"`
	DueAt      *time.Time `db:"due_at" json:"due_at,omitempty"`
	AssigneeID *uuid.UUID `db:"assignee_id" json:"assignee_id,omitempty"`
	CreatedBy  uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

// Document is a stored file reference.
type Document struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	StorageKey   string     `db:"storage_key" json:"storage_key"`
	OwnerID      *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedBy    uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// Article is a knowledge-base entry. Articles are never soft deleted.
type Article struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Status    string    `db:"status" json:"status"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Registered entities.
var (
	Profiles = Define[Profile](Descriptor{
		Name:             "profiles",
		Table:            storage.Table{Schema: SchemaCore, Name: "profiles"},
		SoftDeleteColumn: ColumnDeletedAt,
		Timestamps:       true,
	})
	Departments = Define[Department](Descriptor{
		Name:             "departments",
		Table:            storage.Table{Schema: SchemaCore, Name: "departments"},
		SoftDeleteColumn: ColumnDeletedAt,
		Timestamps:       true,
	})
	Companies = Define[Company](Descriptor{
		Name:             "companies",
		Table:            storage.Table{Schema: SchemaCRM, Name: "companies"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      "owner_id",
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Contacts = Define[Contact](Descriptor{
		Name:             "contacts",
		Table:            storage.Table{Schema: SchemaCRM, Name: "contacts"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      "owner_id",
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Leads = Define[Lead](Descriptor{
		Name:             "leads",
		Table:            storage.Table{Schema: SchemaCRM, Name: "leads"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      "owner_id",
		DepartmentColumn: "department_id",
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Interactions = Define[Interaction](Descriptor{
		Name:             "interactions",
		Table:            storage.Table{Schema: SchemaCRM, Name: "interactions"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      ColumnCreatedBy,
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Tickets = Define[Ticket](Descriptor{
		Name:             "tickets",
		Table:            storage.Table{Schema: SchemaSupport, Name: "tickets"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      ColumnCreatedBy,
		DepartmentColumn: "department_id",
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Tasks = Define[Task](Descriptor{
		Name:             "tasks",
		Table:            storage.Table{Schema: SchemaOps, Name: "tasks"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      ColumnCreatedBy,
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Documents = Define[Document](Descriptor{
		Name:             "documents",
		Table:            storage.Table{Schema: SchemaKnowledge, Name: "documents"},
		SoftDeleteColumn: ColumnDeletedAt,
		OwnerColumn:      "owner_id",
		DepartmentColumn: "department_id",
		CreatedByColumn:  ColumnCreatedBy,
		Timestamps:       true,
	})
	Articles = Define[Article](Descriptor{
		Name:            "articles",
		Table:           storage.Table{Schema: SchemaKnowledge, Name: "articles"},
		CreatedByColumn: ColumnCreatedBy,
		Timestamps:      true,
	})
)
