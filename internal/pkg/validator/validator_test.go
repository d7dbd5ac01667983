package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type commentForm struct {
	PhotoKey string `form:"photo_key" validate:"required,numeric"`
	Content  string `form:"content"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   commentForm
		want map[string]string
	}{
		{"valid", commentForm{PhotoKey: "7", Content: "hi"}, nil},
		{"empty content allowed", commentForm{PhotoKey: "7"}, nil},
		{"missing key", commentForm{}, map[string]string{"photo_key": "This field is required"}},
		{"non numeric key", commentForm{PhotoKey: "abc"}, map[string]string{"photo_key": "Must be a number"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Validate(&tc.in))
		})
	}
}
