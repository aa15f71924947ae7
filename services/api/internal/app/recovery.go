package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"despachante/internal/mailer"
	"despachante/internal/pinstore"
	"despachante/internal/util"
	"despachante/pkg/auth"
	"despachante/pkg/domain"
	"despachante/pkg/store"
)

// SendPIN issues a reset PIN for a registered email and mails it.
func (a *App) SendPIN(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := a.userByEmail(ctx, email); err != nil {
		return err
	}
	code, err := a.pins.Issue(ctx, email)
	if err != nil {
		return fmt.Errorf("issue pin: %w", err)
	}
	if err := a.mailer.SendPIN(ctx, email, code, a.pinTTL); err != nil {
		util.LoggerFromContext(ctx).Error("pin delivery failed", "to", mailer.MaskEmail(email), "err", err)
		return ErrPinDelivery
	}
	return nil
}

// ValidatePIN checks the PIN and marks it validated for ResetPassword.
func (a *App) ValidatePIN(ctx context.Context, email, code string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return ErrPinFieldsEmpty
	}
	email = strings.ToLower(strings.TrimSpace(email))
	err := a.pins.Verify(ctx, email, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pinstore.ErrPinExpired):
		return ErrPinExpired
	case errors.Is(err, pinstore.ErrPinInvalid), errors.Is(err, pinstore.ErrNoPin):
		return ErrPinInvalid
	default:
		return fmt.Errorf("verify pin: %w", err)
	}
}

// ResetPassword sets a new password once the PIN was validated, discards
// the PIN and revokes every session issued before the reset.
func (a *App) ResetPassword(ctx context.Context, email, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := a.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch err := a.pins.Consume(ctx, email); {
	case errors.Is(err, pinstore.ErrPinExpired):
		return ErrPinExpired
	case errors.Is(err, pinstore.ErrNoPin), errors.Is(err, pinstore.ErrNotVerified):
		return ErrPinRequired
	case err != nil:
		return fmt.Errorf("consume pin: %w", err)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.SetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(user.ID, a.now().UTC()); err != nil {
			util.LoggerFromContext(ctx).Warn("revoke sessions after reset failed", "user_id", user.ID, "err", err)
		}
	}
	return nil
}

func (a *App) userByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrEmailNotFound
	}
	return user, nil
}
