package app

import (
	"context"
	"errors"
	"testing"

	"despachante/internal/pinstore"
)

type expiredPins struct{}

func (expiredPins) Issue(context.Context, string) (string, error) { return "123456", nil }
func (expiredPins) Verify(context.Context, string, string) error { return pinstore.ErrPinExpired }
func (expiredPins) Consume(context.Context, string) error { return pinstore.ErrPinExpired }

func TestPasswordRecoveryFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")
	oldToken, _, err := env.app.Login(ctx, user.Email, "segredo123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := env.app.SendPIN(ctx, "Maria@Example.com"); err != nil {
		t.Fatalf("send pin: %v", err)
	}
	code := env.mailer.codes["maria@example.com"]
	if len(code) != pinstore.CodeLength {
		t.Fatalf("expected a %d digit code, got %q", pinstore.CodeLength, code)
	}

	if err := env.app.ResetPassword(ctx, user.Email, "novasenha1"); !errors.Is(err, ErrPinRequired) {
		t.Fatalf("reset before validation must fail, got %v", err)
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := env.app.ValidatePIN(ctx, user.Email, wrong); !errors.Is(err, ErrPinInvalid) {
		t.Fatalf("expected ErrPinInvalid, got %v", err)
	}
	if err := env.app.ValidatePIN(ctx, user.Email, code); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := env.app.ResetPassword(ctx, user.Email, "novasenha1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := env.app.Authenticate(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("sessions issued before the reset must be revoked, got %v", err)
	}
	if _, _, err := env.app.Login(ctx, user.Email, "segredo123"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, _, err := env.app.Login(ctx, user.Email, "novasenha1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := env.app.ResetPassword(ctx, user.Email, "outrasenha2"); !errors.Is(err, ErrPinRequired) {
		t.Fatalf("a consumed pin must not allow another reset, got %v", err)
	}
}

func TestSendPINUnknownEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.app.SendPIN(context.Background(), "ghost@example.com"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if len(env.mailer.codes) != 0 {
		t.Fatalf("no mail may be sent for unknown emails")
	}
}

func TestSendPINDeliveryFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	signUp(t, env.app, "maria@example.com")
	env.mailer.err = errors.New("smtp down")
	if err := env.app.SendPIN(context.Background(), "maria@example.com"); !errors.Is(err, ErrPinDelivery) {
		t.Fatalf("expected ErrPinDelivery, got %v", err)
	}
}

func TestExpiredPIN(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.Pins = expiredPins{} })
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")
	if err := env.app.ValidatePIN(ctx, user.Email, "123456"); !errors.Is(err, ErrPinExpired) {
		t.Fatalf("expected ErrPinExpired, got %v", err)
	}
	if err := env.app.ResetPassword(ctx, user.Email, "novasenha1"); !errors.Is(err, ErrPinExpired) {
		t.Fatalf("expected ErrPinExpired on reset, got %v", err)
	}
}

func TestValidatePINRequiresFields(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.app.ValidatePIN(context.Background(), "maria@example.com", " "); !errors.Is(err, ErrPinFieldsEmpty) {
		t.Fatalf("expected ErrPinFieldsEmpty, got %v", err)
	}
}
