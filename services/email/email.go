// Package emailsvc implements core.EmailService with several providers.
package emailsvc

import (
	"github.com/trezcool/darasa/core"
)

// New returns the email service selected by conf.Email.Provider.
// Unknown providers, or a provider without its API key, fall back to the console.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Provider {
	case "sendgrid":
		if conf.Email.SendgridApiKey != "" {
			return NewSendgridService(conf, logger)
		}
	case "resend":
		if conf.Email.ResendApiKey != "" {
			return NewResendService(conf, logger)
		}
	}
	if conf.Email.Provider != "" && conf.Email.Provider != "console" {
		logger.Warn("email provider not configured, printing emails to the console", map[string]interface{}{"provider": conf.Email.Provider})
	}
	return NewConsoleService(conf, logger)
}
