package store

import (
	"context"
	"errors"
	"time"

	"despachante/pkg/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrVehicleExists = errors.New("vehicle already registered")
)

// ProfileUpdate carries the editable user fields. Nil fields are left as-is.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// Store defines persistence for users, vehicles and service requests.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) (domain.User, error)
	SetUserPassword(ctx context.Context, id, passwordHash string) error

	// vehicles
	AddVehicle(ctx context.Context, v domain.Vehicle) error
	ListVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, userID, id string) (bool, error)

	// service requests, keyed by (user, plate, service type)
	GetServiceRequest(ctx context.Context, userID, plate, serviceType string) (domain.ServiceRequest, bool, error)
	UpsertServiceRequest(ctx context.Context, req domain.ServiceRequest) (domain.ServiceRequest, error)
	ListServiceRequests(ctx context.Context, userID string) ([]domain.ServiceRequest, error)
	SetPayment(ctx context.Context, requestID, paymentID, paymentStatus string) error
}

// Identity is the verified content of a session token.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionStore issues and verifies session tokens.
type SessionStore interface {
	NewSession(u domain.User) (string, error)
	Verify(token string) (Identity, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}
