package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"despachante/internal/util"
	"despachante/pkg/auth"
	"despachante/pkg/domain"
	"despachante/pkg/store"
)

// ProfileInput carries the editable profile fields. Nil means unchanged.
type ProfileInput struct {
	Name  *string
	Email *string
	Phone *string
}

// SignUp registers a user with a bcrypt-hashed password.
func (a *App) SignUp(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, ErrSignupFieldsRequired
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (a *App) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", domain.User{}, ErrLoginFieldsRequired
	}
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return "", domain.User{}, ErrUserNotFound
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return "", domain.User{}, ErrWrongPassword
	}
	token, err := a.sessions.NewSession(user)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("issue session: %w", err)
	}
	return token, user, nil
}

// Authenticate verifies a bearer token.
func (a *App) Authenticate(token string) (store.Identity, error) {
	id, err := a.sessions.Verify(token)
	if err != nil {
		if errors.Is(err, store.ErrTokenInvalid) || errors.Is(err, store.ErrTokenExpired) || errors.Is(err, store.ErrTokenRevoked) {
			return store.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return store.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	return id, nil
}

// Logout revokes the token until it would have expired.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserData returns the profile of the authenticated user.
func (a *App) UserData(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes name, email and phone.
func (a *App) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (domain.User, error) {
	upd := store.ProfileUpdate{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.User{}, ErrNameRequired
		}
		upd.Name = &name
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return domain.User{}, err
		}
		upd.Email = &email
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		upd.Phone = &phone
	}
	user, err := a.store.UpdateUserProfile(ctx, userID, upd)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrUserNotFound
	case errors.Is(err, store.ErrEmailTaken):
		return domain.User{}, ErrEmailAlreadyExists
	case err != nil:
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
