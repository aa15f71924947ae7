package flow

import (
	"context"
	"errors"
	"strings"
)

// RecoveryStage is the position in the password-recovery dialogue.
type RecoveryStage int

const (
	AwaitingEmail RecoveryStage = iota
	AwaitingPin
	AwaitingNewPassword
	RecoveryDone
)

var (
	ErrRecoveryStage    = errors.New("etapa de recuperação fora de ordem")
	ErrPasswordMismatch = errors.New("as senhas não coincidem")
)

// RecoveryClient is the subset of *apiclient.Client used for recovery.
type RecoveryClient interface {
	SendPIN(ctx context.Context, email string) error
	ValidatePIN(ctx context.Context, email, pin string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

// Recovery only advances when the server accepts the step. A failed call
// leaves the stage unchanged.
type Recovery struct {
	client RecoveryClient
	stage  RecoveryStage
	email  string
}

func NewRecovery(client RecoveryClient) *Recovery {
	return &Recovery{client: client}
}

func (r *Recovery) Stage() RecoveryStage { return r.stage }

func (r *Recovery) Email() string { return r.email }

// SubmitEmail asks the server to mail a PIN.
func (r *Recovery) SubmitEmail(ctx context.Context, email string) error {
	if r.stage != AwaitingEmail {
		return ErrRecoveryStage
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "informe o email"}
	}
	if err := r.client.SendPIN(ctx, email); err != nil {
		return err
	}
	r.email = email
	r.stage = AwaitingPin
	return nil
}

func (r *Recovery) SubmitPIN(ctx context.Context, pin string) error {
	if r.stage != AwaitingPin {
		return ErrRecoveryStage
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return &ValidationError{Field: "pin", Message: "informe o código recebido"}
	}
	if err := r.client.ValidatePIN(ctx, r.email, pin); err != nil {
		return err
	}
	r.stage = AwaitingNewPassword
	return nil
}

func (r *Recovery) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if r.stage != AwaitingNewPassword {
		return ErrRecoveryStage
	}
	if password == "" {
		return &ValidationError{Field: "newPassword", Message: "informe a nova senha"}
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := r.client.ResetPassword(ctx, r.email, password); err != nil {
		return err
	}
	r.stage = RecoveryDone
	return nil
}

// Restart goes back to the email prompt, e.g. after an expired PIN.
func (r *Recovery) Restart() {
	r.stage = AwaitingEmail
	r.email = ""
}
