// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "name", "Rondo", false},
		{"empty_string", "name", "", true},
		{"whitespace_only", "name", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidUsername checks the structural username rule shared by guest login
and registration.
*/
func TestValidUsername(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"simple", "bob123", true},
		{"underscores", "bob_123_", true},
		{"single_char", "b", true},
		{"max_length", strings.Repeat("a", 20), true},
		{"too_long", strings.Repeat("a", 21), false},
		{"empty", "", false},
		{"punctuation", "bob!123", false},
		{"spaces", "bob 123", false},
		{"unicode", "böb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isValid, validate.ValidUsername(tt.value))

			v := &validate.Validator{}
			v.Username("name", tt.value)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}
