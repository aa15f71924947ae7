package flow

import (
	"context"
	"errors"
	"testing"
)

type fakeRecovery struct {
	sendErr, validateErr, resetErr error
	emails                         []string
	pins                           []string
	passwords                      []string
}

func (f *fakeRecovery) SendPIN(_ context.Context, email string) error {
	f.emails = append(f.emails, email)
	return f.sendErr
}

func (f *fakeRecovery) ValidatePIN(_ context.Context, email, pin string) error {
	f.pins = append(f.pins, email+":"+pin)
	return f.validateErr
}

func (f *fakeRecovery) ResetPassword(_ context.Context, email, pw string) error {
	f.passwords = append(f.passwords, email+":"+pw)
	return f.resetErr
}

func TestRecoveryHappyPath(t *testing.T) {
	ctx := context.Background()
	client := &fakeRecovery{}
	r := NewRecovery(client)

	if err := r.SubmitEmail(ctx, " maria@example.com "); err != nil {
		t.Fatalf("email: %v", err)
	}
	if r.Stage() != AwaitingPin || r.Email() != "maria@example.com" {
		t.Fatalf("stage=%v email=%q", r.Stage(), r.Email())
	}
	if err := r.SubmitPIN(ctx, "123456"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if err := r.SubmitNewPassword(ctx, "nova123", "nova123"); err != nil {
		t.Fatalf("password: %v", err)
	}
	if r.Stage() != RecoveryDone {
		t.Fatalf("stage = %v", r.Stage())
	}
	if client.pins[0] != "maria@example.com:123456" || client.passwords[0] != "maria@example.com:nova123" {
		t.Fatalf("calls: %v %v", client.pins, client.passwords)
	}
}

func TestRecoveryFailuresDoNotAdvance(t *testing.T) {
	ctx := context.Background()
	client := &fakeRecovery{sendErr: errors.New("Email não encontrado")}
	r := NewRecovery(client)

	if err := r.SubmitEmail(ctx, "x@example.com"); err == nil || r.Stage() != AwaitingEmail {
		t.Fatalf("err=%v stage=%v", err, r.Stage())
	}
	client.sendErr = nil
	if err := r.SubmitEmail(ctx, "x@example.com"); err != nil {
		t.Fatalf("email: %v", err)
	}

	client.validateErr = errors.New("PIN expirado")
	if err := r.SubmitPIN(ctx, "000000"); err == nil || r.Stage() != AwaitingPin {
		t.Fatalf("err=%v stage=%v", err, r.Stage())
	}
	client.validateErr = nil
	if err := r.SubmitPIN(ctx, "111111"); err != nil {
		t.Fatalf("pin: %v", err)
	}

	if err := r.SubmitNewPassword(ctx, "a", "b"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	client.resetErr = errors.New("PIN expirado")
	if err := r.SubmitNewPassword(ctx, "nova", "nova"); err == nil || r.Stage() != AwaitingNewPassword {
		t.Fatalf("err=%v stage=%v", err, r.Stage())
	}

	r.Restart()
	if r.Stage() != AwaitingEmail || r.Email() != "" {
		t.Fatalf("restart: stage=%v email=%q", r.Stage(), r.Email())
	}
}

func TestRecoveryOutOfOrder(t *testing.T) {
	ctx := context.Background()
	client := &fakeRecovery{}
	r := NewRecovery(client)
	if err := r.SubmitPIN(ctx, "123456"); !errors.Is(err, ErrRecoveryStage) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if err := r.SubmitNewPassword(ctx, "x", "x"); !errors.Is(err, ErrRecoveryStage) {
		t.Fatalf("expected stage error, got %v", err)
	}
	var verr *ValidationError
	if err := r.SubmitEmail(ctx, ""); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(client.emails) != 0 {
		t.Fatalf("client called for empty email")
	}
}
