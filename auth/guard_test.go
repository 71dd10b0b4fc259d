package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"nse-alerts-dashboard/realtime"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type mockSession struct {
	mu        sync.Mutex
	valid     bool
	verifyErr error
	logoutErr error
	logouts   int
}

func (m *mockSession) VerifySession(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verifyErr != nil {
		return false, m.verifyErr
	}
	return m.valid, nil
}

func (m *mockSession) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logouts++
	return m.logoutErr
}

type noticeSurface struct {
	mu      sync.Mutex
	notices []string
}

func (n *noticeSurface) Publish(event string, payload interface{}) {
	if event != realtime.EventSessionNotice {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, event)
}

func seededCreds(t *testing.T, token string) *CredentialStore {
	t.Helper()
	kv := newMemKV()
	creds := NewCredentialStore(kv)
	if token != "" {
		if err := creds.Save(context.Background(), token); err != nil {
			t.Fatal(err)
		}
	}
	return creds
}

func TestGuardStartNoCredential(t *testing.T) {
	guard := NewGuard(&mockSession{valid: true}, seededCreds(t, ""), realtime.NopSurface{}, time.Minute, nil)

	err := guard.Start(context.Background())
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("got %v, want ErrNoCredential", err)
	}
}

func TestGuardStartValid(t *testing.T) {
	guard := NewGuard(&mockSession{valid: true}, seededCreds(t, "tok"), realtime.NopSurface{}, time.Minute, nil)

	if err := guard.Start(context.Background()); err != nil {
		t.Errorf("valid session: got %v", err)
	}
}

func TestGuardStartRejectedClearsCredential(t *testing.T) {
	creds := seededCreds(t, "tok")
	guard := NewGuard(&mockSession{valid: false}, creds, realtime.NopSurface{}, time.Minute, nil)

	err := guard.Start(context.Background())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("got %v, want ErrAuthRejected", err)
	}
	if creds.Token() != "" {
		t.Error("rejected credential must be cleared")
	}
}

func TestGuardStartNetworkFailureFailsOpen(t *testing.T) {
	creds := seededCreds(t, "tok")
	api := &mockSession{verifyErr: errors.New("connection refused")}
	guard := NewGuard(api, creds, realtime.NopSurface{}, time.Minute, nil)

	if err := guard.Start(context.Background()); err != nil {
		t.Errorf("network failure should not halt startup: %v", err)
	}
	if creds.Token() == "" {
		t.Error("network failure must not clear the credential")
	}
}

func TestGuardRunExpiresOnRejection(t *testing.T) {
	creds := seededCreds(t, "tok")
	api := &mockSession{valid: true}
	surface := &noticeSurface{}

	expired := make(chan struct{})
	guard := NewGuard(api, creds, surface, 5*time.Millisecond, func() { close(expired) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go guard.Run(ctx)

	// Let at least one valid revalidation pass, then reject.
	time.Sleep(15 * time.Millisecond)
	api.mu.Lock()
	api.valid = false
	api.mu.Unlock()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback not fired")
	}

	if creds.Token() != "" {
		t.Error("expiry must clear the credential")
	}
	surface.mu.Lock()
	defer surface.mu.Unlock()
	if len(surface.notices) == 0 {
		t.Error("expiry must publish a session notice")
	}
}

func TestGuardRunToleratesNetworkErrors(t *testing.T) {
	creds := seededCreds(t, "tok")
	api := &mockSession{verifyErr: errors.New("timeout")}

	fired := false
	guard := NewGuard(api, creds, realtime.NopSurface{}, 5*time.Millisecond, func() { fired = true })

	ctx, cancel := context.WithCancel(context.Background())
	go guard.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	if fired {
		t.Error("network errors must not end the session")
	}
	if creds.Token() == "" {
		t.Error("credential must survive network errors")
	}
}

func TestGuardLogoutBestEffort(t *testing.T) {
	creds := seededCreds(t, "tok")
	api := &mockSession{valid: true, logoutErr: errors.New("500")}

	fired := false
	guard := NewGuard(api, creds, realtime.NopSurface{}, time.Minute, func() { fired = true })

	guard.Logout(context.Background())

	if api.logouts != 1 {
		t.Errorf("backend logout calls: got %d, want 1", api.logouts)
	}
	if creds.Token() != "" {
		t.Error("logout must clear the credential even when the backend call fails")
	}
	if !fired {
		t.Error("logout must fire the expiry callback")
	}
}
