package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name   string  `json:"name" validate:"notblank"`
	Email  string  `json:"email,omitempty" validate:"omitempty,email"`
	Color  string  `json:"color" validate:"omitempty,hexcolor"`
	Status string  `json:"status" validate:"oneof=active inactive"`
	Beds   int     `json:"bedCount" validate:"gte=0"`
	Note   *string `json:"note" validate:"omitempty,notblank"`
}

func TestValidate(t *testing.T) {
	v := New()

	ok := sample{Name: "Central", Email: "ops@central.org", Color: "#1e40af", Status: "active"}
	assert.NoError(t, v.Validate(ok))

	blank := "   "
	bad := sample{Name: "  ", Email: "nope", Color: "blue", Status: "closed", Beds: -1, Note: &blank}
	err := v.Validate(bad)
	assert.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "email must be a valid email address")
	assert.Contains(t, msg, "color must be a hex color")
	assert.Contains(t, msg, "status must be one of [active inactive]")
	assert.Contains(t, msg, "bedCount must be greater than or equal to 0")
	assert.Contains(t, msg, "note is required")
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
