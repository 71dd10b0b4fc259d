package auth

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/realtime"
)

var totpCodeRe = regexp.MustCompile(`^\d{6}$`)

// TOTPAPI is the slice of the backend the TOTP entry depends on.
type TOTPAPI interface {
	VerifyTOTP(ctx context.Context, code string) (*model.TOTPResult, error)
	SessionStatus(ctx context.Context) (*model.TradingSessionStatus, error)
}

// TOTPStatus is the entry's published display state.
type TOTPStatus struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Locked  bool   `json:"locked"`
}

// TOTPEntry models the trading-session TOTP input: digit-only normalization,
// 6-digit validation before any network call, and a quiet-period debounce
// that auto-submits once 6 digits are present.
type TOTPEntry struct {
	api      TOTPAPI
	surface  realtime.Surface
	debounce time.Duration

	mu     sync.Mutex
	input  string
	locked bool
	timer  *time.Timer
}

// NewTOTPEntry creates the entry with the given auto-submit debounce.
func NewTOTPEntry(api TOTPAPI, surface realtime.Surface, debounce time.Duration) *TOTPEntry {
	return &TOTPEntry{api: api, surface: surface, debounce: debounce}
}

// Input feeds raw text into the entry. Non-digits are stripped and the value
// is capped at 6 digits; reaching 6 digits arms the debounce auto-submit.
func (e *TOTPEntry) Input(ctx context.Context, text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.locked {
		return e.input
	}

	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if b.Len() == 6 {
			break
		}
	}
	e.input = b.String()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if len(e.input) == 6 {
		// The timer fires after the caller's request context is gone, so
		// the auto-submit runs on a detached context.
		checkCtx := context.WithoutCancel(ctx)
		e.timer = time.AfterFunc(e.debounce, func() {
			if err := e.Check(checkCtx); err != nil {
				log.Printf("TOTP auto-check failed: %v", err)
			}
		})
	}
	return e.input
}

// Check validates the current code and submits it. Malformed codes surface a
// validation error without any network call.
func (e *TOTPEntry) Check(ctx context.Context) error {
	e.mu.Lock()
	if e.locked {
		e.mu.Unlock()
		return nil
	}
	code := e.input
	e.mu.Unlock()

	if len(code) != 6 {
		e.publish("error", "Please enter a 6-digit TOTP code", false)
		return fmt.Errorf("totp code must be 6 digits, got %d", len(code))
	}
	if !totpCodeRe.MatchString(code) {
		e.publish("error", "TOTP code must contain only numbers", false)
		return fmt.Errorf("totp code contains non-digits")
	}

	e.publish("loading", "Verifying TOTP code...", false)

	result, err := e.api.VerifyTOTP(ctx, code)
	if err != nil {
		e.publish("error", "Error verifying TOTP. Please try again.", false)
		return fmt.Errorf("verify totp: %w", err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Invalid TOTP code"
		}
		e.publish("error", msg, false)
		return fmt.Errorf("totp rejected: %s", msg)
	}

	e.mu.Lock()
	e.locked = true
	e.mu.Unlock()

	msg := result.Message
	if msg == "" {
		msg = "TOTP verified and session established for the day"
	}
	e.publish("success", msg, true)

	if result.SessionInfo != nil {
		e.publish("success", fmt.Sprintf("Session established! SID: %s", result.SessionInfo.SID), true)
	}
	return nil
}

// RestoreSessionState queries the backend for an already-active trading
// session and locks the entry when one exists. Errors leave the entry open.
func (e *TOTPEntry) RestoreSessionState(ctx context.Context) {
	status, err := e.api.SessionStatus(ctx)
	if err != nil {
		log.Printf("Error checking trading session status: %v", err)
		return
	}

	e.mu.Lock()
	e.locked = status.Active
	if !status.Active {
		e.input = ""
	}
	e.mu.Unlock()

	if status.Active {
		e.publish("success", fmt.Sprintf("Session active until %s", status.ExpiresAt), true)
	}
}

// Locked reports whether an active trading session has disabled the entry.
func (e *TOTPEntry) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

func (e *TOTPEntry) publish(level, message string, locked bool) {
	e.surface.Publish(realtime.EventTOTPStatus, TOTPStatus{
		Level:   level,
		Message: message,
		Locked:  locked,
	})
}
