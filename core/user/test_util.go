package user

import (
	"context"

	"github.com/trezcool/darasa/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends its mails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{service: newService(repo, mailSvc, conf)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken exposes the reset token of usr, for tests outside this package.
func (svc *serviceMock) MakeResetToken(usr User) (uid, token string) {
	return encodeUID(usr), svc.tokenGen.makeToken(usr)
}
