package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"despachante/internal/pinstore"
	"despachante/internal/testutil"
	"despachante/pkg/domain"
	"despachante/pkg/store"
	"despachante/services/api/internal/payments"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failPut func(key string) bool
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut != nil && m.failPut(key) {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (r *recordingMailer) SendPIN(_ context.Context, to, code string, _ time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = make(map[string]string)
	}
	r.codes[to] = code
	return nil
}

type recordingGateway struct {
	mu      sync.Mutex
	charges []payments.Charge
}

func (g *recordingGateway) Create(_ context.Context, c payments.Charge) (payments.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, c)
	return payments.Result{ID: fmt.Sprintf("mp-%d", len(g.charges)), Status: "pending"}, nil
}

type failingUpsertStore struct {
	*store.MemoryStore
}

func (failingUpsertStore) UpsertServiceRequest(context.Context, domain.ServiceRequest) (domain.ServiceRequest, error) {
	return domain.ServiceRequest{}, errors.New("connection reset")
}

type pdfDoc struct {
	*bytes.Reader
}

func (pdfDoc) Close() error { return nil }

func pdfUpload(name string) Upload {
	data := testutil.MinimalPDF(strings.TrimSuffix(name, ".pdf"))
	return Upload{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(data)),
		Open:        func() (Document, error) { return pdfDoc{bytes.NewReader(data)}, nil },
	}
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	objects *memoryObjects
	mailer  *recordingMailer
}

func newTestEnv(t *testing.T, mutate func(*Config)) testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("k1", testSecret, nil, time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	env := testEnv{store: mem, objects: newMemoryObjects(), mailer: &recordingMailer{}}
	cfg := Config{
		Store:    mem,
		Sessions: sessions,
		Objects:  env.objects,
		Pins:     pinstore.NewMemoryStore(pinstore.DefaultTTL),
		Mailer:   env.mailer,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	env.app, err = New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return env
}

func signUp(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	u, err := a.SignUp(context.Background(), "Maria Silva", email, "segredo123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return u
}

func TestNewRequiresObjectAndPinStores(t *testing.T) {
	if _, err := New(Config{Store: store.NewMemoryStore(), Pins: pinstore.NewMemoryStore(0)}); err == nil {
		t.Fatalf("expected error without object store")
	}
	if _, err := New(Config{Store: store.NewMemoryStore(), Objects: newMemoryObjects()}); err == nil {
		t.Fatalf("expected error without pin store")
	}
}
