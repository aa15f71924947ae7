package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"despachante/pkg/domain"
)

// MemoryStore keeps records in-process. It backs tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User // key: user ID
	email    map[string]string      // email -> user ID
	vehicles map[string]domain.Vehicle
	requests map[string]domain.ServiceRequest // key: request ID
	tuples   map[string]string                // tuple key -> request ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		vehicles: make(map[string]domain.Vehicle),
		requests: make(map[string]domain.ServiceRequest),
		tuples:   make(map[string]string),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[u.Email]; ok {
		return ErrEmailTaken
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UpdateUserProfile(_ context.Context, id string, upd ProfileUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := m.email[*upd.Email]; taken {
			return domain.User{}, ErrEmailTaken
		}
		delete(m.email, u.Email)
		u.Email = *upd.Email
		m.email[u.Email] = u.ID
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemoryStore) SetUserPassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

func (m *MemoryStore) AddVehicle(_ context.Context, v domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.vehicles {
		if existing.UserID == v.UserID && existing.Plate == v.Plate {
			return ErrVehicleExists
		}
	}
	m.vehicles[v.ID] = v
	return nil
}

func (m *MemoryStore) ListVehicles(_ context.Context, userID string) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Vehicle, 0)
	for _, v := range m.vehicles {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteVehicle(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok || v.UserID != userID {
		return false, nil
	}
	delete(m.vehicles, id)
	return true, nil
}

func (m *MemoryStore) GetServiceRequest(_ context.Context, userID, plate, serviceType string) (domain.ServiceRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tuples[tupleKey(userID, plate, serviceType)]
	if !ok {
		return domain.ServiceRequest{}, false, nil
	}
	return cloneRequest(m.requests[id]), true, nil
}

// UpsertServiceRequest mirrors the conflict behavior of GormStore.
func (m *MemoryStore) UpsertServiceRequest(_ context.Context, req domain.ServiceRequest) (domain.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tupleKey(req.UserID, req.VehiclePlate, req.ServiceType)
	if id, ok := m.tuples[key]; ok {
		existing := m.requests[id]
		existing.DocumentURLs = append([]string(nil), req.DocumentURLs...)
		existing.DocumentKeys = append([]string(nil), req.DocumentKeys...)
		existing.ApplicantName = req.ApplicantName
		existing.VehicleNickname = req.VehicleNickname
		existing.PaymentMethod = req.PaymentMethod
		existing.UpdatedAt = req.UpdatedAt
		m.requests[id] = existing
		return cloneRequest(existing), nil
	}
	stored := cloneRequest(req)
	m.requests[req.ID] = stored
	m.tuples[key] = req.ID
	return cloneRequest(stored), nil
}

func (m *MemoryStore) ListServiceRequests(_ context.Context, userID string) ([]domain.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ServiceRequest, 0)
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *MemoryStore) SetPayment(_ context.Context, requestID, paymentID, paymentStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	r.PaymentID = paymentID
	r.PaymentStatus = paymentStatus
	m.requests[requestID] = r
	return nil
}

func tupleKey(userID, plate, serviceType string) string {
	return strings.Join([]string{userID, plate, serviceType}, "\x00")
}

func cloneRequest(r domain.ServiceRequest) domain.ServiceRequest {
	r.DocumentURLs = append([]string(nil), r.DocumentURLs...)
	r.DocumentKeys = append([]string(nil), r.DocumentKeys...)
	return r
}
