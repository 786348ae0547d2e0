package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const defaultSessionIdleTTL = 15 * time.Minute

var errMissingUserID = errors.New("dashboard: session requires a user id")

// ErrSessionReleased is returned by Acquire when the session was released
// while the user was being applied. The router it mounted is closed.
var ErrSessionReleased = errors.New("dashboard: session released during acquire")

// SessionPoolOptions configures a SessionPool.
type SessionPoolOptions struct {
	Router  RouterOptions
	IdleTTL time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

type session struct {
	router   *RoleRouter
	lastSeen time.Time
}

// SessionPool keeps one dashboard slot per user. Each slot is a RoleRouter so
// a role change for a user tears down their old variant before mounting the
// new one.
type SessionPool struct {
	opts   SessionPoolOptions
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session

	// admitted runs between admission and SetUser; tests use it to interleave
	// a Release.
	admitted func(userID string)
}

// NewSessionPool builds an empty pool.
func NewSessionPool(opts SessionPoolOptions) (*SessionPool, error) {
	if opts.Router.Variants == nil {
		return nil, errMissingVariants
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultSessionIdleTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Router.Logger == nil {
		opts.Router.Logger = opts.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionPool{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*session),
	}, nil
}

// Acquire returns the router for user, creating it on first use, and applies
// the user so the mounted variant follows their current role.
func (p *SessionPool) Acquire(ctx context.Context, user *User) (*RoleRouter, error) {
	if user == nil || user.ID == "" {
		return nil, errMissingUserID
	}
	p.mu.Lock()
	s, ok := p.sessions[user.ID]
	if !ok {
		router, err := NewRoleRouter(p.opts.Router)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		s = &session{router: router}
		p.sessions[user.ID] = s
	}
	s.lastSeen = p.opts.Now()
	p.mu.Unlock()

	if p.admitted != nil {
		p.admitted(user.ID)
	}
	err := s.router.SetUser(ctx, user)

	p.mu.Lock()
	live := p.sessions[user.ID] == s
	p.mu.Unlock()
	if !live {
		if cerr := s.router.Close(ctx); cerr != nil {
			p.logger.Warn("close released dashboard session failed", zap.String("user", user.ID), zap.Error(cerr))
		}
		return nil, ErrSessionReleased
	}
	if err != nil && !errors.Is(err, ErrUnknownVariant) {
		return s.router, err
	}
	return s.router, nil
}

// Lookup returns the router of an existing session without touching it.
func (p *SessionPool) Lookup(userID string) (*RoleRouter, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.router, true
}

// Release tears down the session of userID.
func (p *SessionPool) Release(ctx context.Context, userID string) error {
	p.mu.Lock()
	s, ok := p.sessions[userID]
	delete(p.sessions, userID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return s.router.Close(ctx)
}

// Len returns the number of live sessions.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sweep releases sessions idle for longer than the configured TTL and
// returns how many were evicted.
func (p *SessionPool) Sweep(ctx context.Context) int {
	cutoff := p.opts.Now().Add(-p.opts.IdleTTL)
	p.mu.Lock()
	var idle []*session
	for id, s := range p.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()
	for _, s := range idle {
		if err := s.router.Close(ctx); err != nil {
			p.logger.Warn("close idle dashboard session failed", zap.Error(err))
		}
	}
	if len(idle) > 0 {
		p.logger.Debug("evicted idle dashboard sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done, then closes the
// pool.
func (p *SessionPool) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = p.opts.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.Close(context.Background())
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Close releases every session.
func (p *SessionPool) Close(ctx context.Context) error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*session)
	p.mu.Unlock()

	var merr *multierror.Error
	for _, s := range sessions {
		if err := s.router.Close(ctx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
