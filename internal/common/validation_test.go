package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	SKU  string `validate:"required,code"`
	Name string `validate:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{SKU: "INT-BL-D23-150", Name: "ok"}))

	err := ValidateStruct(sample{SKU: "#bad", Name: "too long"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	fields := FieldErrors(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "SKU", fields[0].Field)
	assert.Equal(t, "code", fields[0].Rule)
	assert.Equal(t, "max", fields[1].Rule)

	assert.Nil(t, FieldErrors(ErrNotFound))
}
