package emailsvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"

	"github.com/trezcool/darasa/core"
)

var resendTimeout = 15 * time.Second

type resendService struct {
	client          *resend.Client
	from            string
	subjPrefix      string
	appName         string
	frontendBaseURL string
	logger          core.Logger
}

var _ core.EmailService = (*resendService)(nil)

func NewResendService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromAddress()
	return &resendService{
		client:          resend.NewClient(conf.Email.ResendApiKey),
		from:            from.String(),
		subjPrefix:      "[" + conf.AppName + "] ",
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
		logger:          logger,
	}
}

func (svc resendService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.appName, svc.frontendBaseURL); err != nil {
				svc.logger.Error("rendering email", errors.Wrap(err, "rendering email"))
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				ctx, cancel := context.WithTimeout(context.Background(), resendTimeout)
				defer cancel()
				if err := svc.send(ctx, *msg); err != nil {
					svc.logger.Error("sending email", err)
				}
			}
		}()
	}
}

func (svc resendService) prepare(msg core.EmailMessage) (*resend.SendEmailRequest, error) {
	req := &resend.SendEmailRequest{
		From:    svc.from,
		To:      addressList(msg.To),
		Cc:      addressList(msg.Cc),
		Bcc:     addressList(msg.Bcc),
		Subject: svc.subjPrefix + msg.Subject,
		Text:    msg.TextContent,
		Html:    msg.HTMLContent,
	}
	for _, at := range msg.Attachments {
		// core.Attachment holds base64; resend encodes the raw bytes itself
		content, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(at.Content.Bytes())))
		if err != nil {
			return nil, errors.Wrap(err, "decoding attachment")
		}
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Content:  content,
			Filename: at.Filename,
		})
	}
	return req, nil
}

func (svc resendService) send(ctx context.Context, msg core.EmailMessage) error {
	req, err := svc.prepare(msg)
	if err != nil {
		return err
	}
	if _, err = svc.client.Emails.SendWithContext(ctx, req); err != nil {
		return errors.Wrap(err, "calling resend")
	}
	return nil
}

func addressList(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}
