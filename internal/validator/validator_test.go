package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckKeepsFirstError(t *testing.T) {
	v := New()
	v.Check(false, "title", "must be provided")
	v.Check(false, "title", "must not be more than 500 bytes long")
	v.Check(true, "year", "must be provided")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"title": "must be provided"}, v.Errors)
}

func TestHelpers(t *testing.T) {
	assert.True(t, In("Drama", "Action", "Drama"))
	assert.False(t, In("drama", "Action", "Drama"))
	assert.True(t, In(3, 1, 2, 3))

	assert.True(t, Unique([]int64{1, 2, 3}))
	assert.False(t, Unique([]string{"a", "b", "a"}))

	assert.True(t, MaxChars("héllo", 5))
	assert.False(t, MaxChars("héllo!", 5))

	assert.False(t, NotBlank("   "))
	assert.True(t, Matches("alice@example.com", EmailRX))

	assert.True(t, AbsoluteURL("https://www.youtube.com/watch?v=abc"))
	assert.False(t, AbsoluteURL("/relative/path"))
	assert.False(t, AbsoluteURL("ftp://example.com/file"))
}

func TestStructUsesJSONNames(t *testing.T) {
	var input struct {
		MovieID int64  `json:"movie_id" validate:"required,gt=0"`
		Status  string `json:"status" validate:"omitempty,oneof=want_to_watch watching watched"`
		Notes   string `json:"notes" validate:"max=5"`
	}
	input.Status = "later"
	input.Notes = "too long"

	v := New()
	v.Struct(input)

	assert.Equal(t, "must be provided", v.Errors["movie_id"])
	assert.Equal(t, "must be one of: want_to_watch watching watched", v.Errors["status"])
	assert.Equal(t, "must not be more than 5 characters long", v.Errors["notes"])
}

func TestStructValid(t *testing.T) {
	input := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: "bob@example.com"}

	v := New()
	v.Struct(input)
	assert.True(t, v.Valid())
}
