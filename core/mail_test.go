package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/darasa/fs"
)

func TestParseEmailTemplates(t *testing.T) {
	require.NoError(t, ParseEmailTemplates(appfs.FS))

	for _, name := range []string{"welcome", "password_reset", "enrollment", "assessment_result", "notification"} {
		t.Run(name, func(t *testing.T) {
			m := EmailMessage{TemplateName: name}
			_, hasText := m.getTemplate(".txt")
			_, hasHTML := m.getTemplate(".gohtml")
			assert.True(t, hasText)
			assert.True(t, hasHTML)
		})
	}
}

func TestEmailMessage_Render(t *testing.T) {
	msg := EmailMessage{TemplateName: "welcome", TemplateData: struct{ Name string }{Name: "Jon"}}
	require.NoError(t, msg.Render("Darasa", "http://localhost:5173"))
	assert.Contains(t, msg.TextContent, "Hi Jon,")
	assert.Contains(t, msg.HTMLContent, "Welcome to Darasa!")
	assert.True(t, msg.HasContent())

	unknown := EmailMessage{TemplateName: "nope"}
	assert.EqualError(t, unknown.Render("Darasa", ""), `unknown email template "nope"`)

	plain := EmailMessage{BodyStr: "hello"}
	require.NoError(t, plain.Render("Darasa", ""))
	assert.Equal(t, "hello", plain.TextContent)
}
