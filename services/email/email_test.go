package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	logsvc "github.com/trezcool/darasa/services/logger"
)

type welcomeData struct {
	Name string
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(core.NewTestConfig(), logsvc.NewNopLogger())

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jon", Address: "jon@test.com"}},
			Subject:      "Welcome",
			TemplateName: "welcome",
			TemplateData: welcomeData{Name: "Jon"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.com"}}, Subject: "plain", BodyStr: "hello"},
	)

	sent := Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, "Hi Jon,")
	assert.Contains(t, sent[0].TextContent, "http://localhost:5173/login")
	assert.Contains(t, sent[0].HTMLContent, "Welcome to Darasa!")
	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
}

func TestNew_FallsBackToConsole(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		sgKey    string
		rsKey    string
		want     interface{}
	}{
		{name: "console", provider: "console", want: &consoleService{}},
		{name: "sendgrid without key", provider: "sendgrid", want: &consoleService{}},
		{name: "sendgrid", provider: "sendgrid", sgKey: "SG.x", want: &sendgridService{}},
		{name: "resend", provider: "resend", rsKey: "re_x", want: &resendService{}},
		{name: "unknown", provider: "pigeon", want: &consoleService{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := core.NewTestConfig()
			conf.Email = core.EmailConfig{Provider: tt.provider, SendgridApiKey: tt.sgKey, ResendApiKey: tt.rsKey}
			assert.IsType(t, tt.want, New(conf, logsvc.NewNopLogger()))
		})
	}
}

func TestResendService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Email.ResendApiKey = "re_x"
	svc := NewResendService(conf, logsvc.NewNopLogger()).(*resendService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Jon", Address: "jon@test.com"}},
		Subject:     "Report",
		TextContent: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("col1,col2"), "report.csv", "text/csv"))

	req, err := svc.prepare(msg)
	require.NoError(t, err)
	assert.Equal(t, `"Darasa" <noreply@localhost>`, req.From)
	assert.Equal(t, []string{`"Jon" <jon@test.com>`}, req.To)
	assert.Nil(t, req.Cc)
	assert.Equal(t, "[Darasa] Report", req.Subject)
	if assert.Len(t, req.Attachments, 1) {
		assert.Equal(t, "report.csv", req.Attachments[0].Filename)
		assert.True(t, bytes.Equal([]byte("col1,col2"), req.Attachments[0].Content))
	}
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, logsvc.NewNopLogger()).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Address: "a@test.com"}},
		Cc:          []mail.Address{{Address: "b@test.com"}},
		Subject:     "Hi",
		TextContent: "text",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Darasa] Hi", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].CC, 1)
	assert.Len(t, m.Content, 1) // no html part without html content
}
