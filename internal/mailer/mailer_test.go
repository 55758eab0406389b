package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	msg, err := render("user_welcome.tmpl", map[string]any{
		"firstName": "Ada",
		"userID":    42,
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to Moviematic!", msg.subject)
	assert.Contains(t, msg.plainBody, "Hi Ada,")
	assert.Contains(t, msg.plainBody, "Your user ID number is 42.")
	assert.Contains(t, msg.htmlBody, "<p>Hi Ada,</p>")
}

func TestRenderMissingTemplate(t *testing.T) {
	_, err := render("nope.tmpl", nil)
	assert.Error(t, err)
}
