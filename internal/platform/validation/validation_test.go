package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
)

type sample struct {
	Title  string  `json:"title" validate:"required,max=5"`
	Status *string `json:"status" validate:"omitempty,oneof=open closed"`
	Value  int64   `json:"value_cents" validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct("leads", "create", sample{Title: "ok"}))

	bad := "pending"
	err := Struct("leads", "create", sample{Status: &bad, Value: -1})
	require.ErrorIs(t, err, access.ErrInvalidInput)
	msg := access.PublicMessage(err)
	assert.Contains(t, msg, "title is required")
	assert.Contains(t, msg, "status must be one of [open closed]")
	assert.Contains(t, msg, "value_cents must be >= 0")
}
