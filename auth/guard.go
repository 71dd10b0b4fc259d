// Package auth implements the session guard: it validates the stored
// credential before anything else runs, revalidates it on a timer, and forces
// logout on expiry.
package auth

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"nse-alerts-dashboard/realtime"
)

var (
	// ErrNoCredential means no session token is stored; the caller must
	// halt all further initialization and send the user to login.
	ErrNoCredential = errors.New("no session credential stored")
	// ErrAuthRejected means the backend explicitly rejected the credential.
	ErrAuthRejected = errors.New("session rejected by backend")
)

// SessionAPI is the slice of the backend the guard depends on.
type SessionAPI interface {
	VerifySession(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// Guard validates the session credential and owns the revalidation timer.
type Guard struct {
	api     SessionAPI
	creds   *CredentialStore
	surface realtime.Surface

	interval  time.Duration
	onExpired func()

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewGuard creates a session guard. onExpired fires once whenever the session
// ends, by expiry or by manual logout.
func NewGuard(api SessionAPI, creds *CredentialStore, surface realtime.Surface, interval time.Duration, onExpired func()) *Guard {
	return &Guard{
		api:       api,
		creds:     creds,
		surface:   surface,
		interval:  interval,
		onExpired: onExpired,
	}
}

// Start performs the one-shot startup validation. It returns ErrNoCredential
// when nothing is stored and ErrAuthRejected on an explicit rejection (which
// also clears the credential). A network failure fails open: the network, not
// the session, is assumed to be at fault.
func (g *Guard) Start(ctx context.Context) error {
	token, err := g.creds.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoCredential
	}

	valid, err := g.api.VerifySession(ctx)
	if err != nil {
		log.Printf("⚠️  Session validation error (continuing): %v", err)
		return nil
	}
	if !valid {
		g.creds.Clear(ctx)
		return ErrAuthRejected
	}
	return nil
}

// Run revalidates the session on a fixed interval until ctx is cancelled or
// the session expires. Network errors are logged and the timer continues;
// only an explicit rejection ends the session.
func (g *Guard) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			if g.creds.Token() == "" {
				g.expire(ctx)
				return
			}

			valid, err := g.api.VerifySession(runCtx)
			if err != nil {
				log.Printf("⚠️  Session monitoring error: %v", err)
				continue
			}
			if !valid {
				g.expire(ctx)
				return
			}
		}
	}
}

// expire ends the session after an explicit rejection: clear state, stop the
// timer, surface a blocking notice, and hand control back to login.
func (g *Guard) expire(ctx context.Context) {
	g.stopTimer()
	g.creds.Clear(ctx)

	g.surface.Publish(realtime.EventSessionNotice, map[string]string{
		"level":   "blocking",
		"message": "Your session has expired. Please login again.",
	})
	log.Println("🔒 Session expired, forcing logout")

	if g.onExpired != nil {
		g.onExpired()
	}
}

// Logout ends the session manually: stop the timer, clear the credential,
// notify the backend best-effort, and redirect unconditionally.
func (g *Guard) Logout(ctx context.Context) {
	g.stopTimer()

	if err := g.api.Logout(ctx); err != nil {
		log.Printf("Logout notification failed (ignored): %v", err)
	}
	g.creds.Clear(ctx)

	if g.onExpired != nil {
		g.onExpired()
	}
}

func (g *Guard) stopTimer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
