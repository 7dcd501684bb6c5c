package session

import (
	"context"
	"sync"
	"time"

	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/metrics"
	"go.uber.org/zap"
)

// Refresher exchanges the ambient refresh credential for a fresh access
// token, patching the store in place on success.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) error
}

// State tracks the boot sequence. The application renders nothing while the
// restorer is in StateRestoring.
type State int

const (
	StateRestoring State = iota
	StateReady
)

func (s State) String() string {
	if s == StateRestoring {
		return "restoring"
	}
	return "ready"
}

// Restorer runs the one-shot boot-time session restoration. Whatever happens
// inside — refresh failure, corrupt record, panic — it lands in StateReady
// and never crashes boot.
type Restorer struct {
	store     Store
	refresher Refresher
	timeout   time.Duration

	mu    sync.Mutex
	state State
}

// NewRestorer builds a restorer. A zero timeout disables the deadline on the
// refresh call.
func NewRestorer(store Store, refresher Refresher, timeout time.Duration) *Restorer {
	return &Restorer{
		store:     store,
		refresher: refresher,
		timeout:   timeout,
		state:     StateRestoring,
	}
}

// State returns the current boot state.
func (r *Restorer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Restore runs the restoration sequence and reports whether a session
// survived it. The transition to StateReady is unconditional.
func (r *Restorer) Restore(ctx context.Context) (restored bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Session restoration panicked", zap.Any("panic", rec))
			restored = false
		}

		r.mu.Lock()
		r.state = StateReady
		r.mu.Unlock()

		status := "restored"
		if !restored {
			status = "unauthenticated"
		}
		metrics.SessionRestoreTotal.WithLabelValues(status).Inc()
	}()

	rec := r.store.Get()
	if rec == nil {
		logger.Debug("No persisted session, nothing to restore")
		return false
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.refresher.RefreshAccessToken(ctx); err != nil {
		logger.Warn("Session refresh failed during restoration, dropping session", zap.Error(err))
		if clearErr := r.store.Clear(); clearErr != nil {
			logger.Error("Failed to clear session after refresh failure", zap.Error(clearErr))
		}
		return false
	}

	// The refresh protocol already patched the access token; the rest of the
	// record must still hold its shape.
	if err := rec.Validate(); err != nil {
		logger.Warn("Persisted session failed validation after refresh, dropping session", zap.Error(err))
		if clearErr := r.store.Clear(); clearErr != nil {
			logger.Error("Failed to clear invalid session", zap.Error(clearErr))
		}
		return false
	}

	if claims, err := rec.Claims(); err == nil {
		logger.Debug("Session restored",
			zap.String("subject", claims.Subject),
			zap.Time("token_expires_at", claims.ExpiresAt))
	} else {
		logger.Debug("Session restored", zap.String("user_id", rec.User.ID))
	}

	return true
}
