package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type notificationApi struct {
	mailSvc  core.EmailService
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *notificationApi) {
	g.POST("/notifications/email", api.sendEmail, jwt, adminMiddleware())
}

// sendEmail renders the `notification` template for every recipient.
func (api *notificationApi) sendEmail(ctx echo.Context) error {
	var data EmailNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailNotification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msgs := make([]*core.EmailMessage, 0, len(data.To))
	for _, to := range data.To {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: to.Name, Address: to.Email}},
			Subject:      data.Subject,
			TemplateName: "notification",
			TemplateData: notificationMailData{Name: to.Name, Body: data.Body},
		})
	}
	api.mailSvc.SendMessages(msgs...)
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "Email queued."})
}

type (
	Recipient struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"required,email"`
	}

	EmailNotification struct {
		To      []Recipient `json:"to" validate:"required,min=1,max=100,dive"`
		Subject string      `json:"subject" validate:"required,max=200"`
		Body    string      `json:"body" validate:"required"`
	}

	notificationMailData struct {
		Name string
		Body string
	}
)

func (en *EmailNotification) Validate(validate *validator.Validate) error {
	en.Subject = core.CleanString(en.Subject)
	en.Body = core.CleanString(en.Body)
	for i := range en.To {
		en.To[i].Name = core.CleanString(en.To[i].Name)
		en.To[i].Email = core.CleanString(en.To[i].Email, true /* lower */)
	}
	return validate.Struct(en)
}
