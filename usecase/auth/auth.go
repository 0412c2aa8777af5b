package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/pkg/logger"
	"github.com/fastygo/qcconsole/pkg/tokencodec"
	"github.com/fastygo/qcconsole/repository"
)

// Backend is the subset of the REST backend the session lifecycle calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context) error
}

// Config controls the periodic validator and the expiring-soon threshold.
type Config struct {
	ValidateInterval time.Duration
	ExpiringSoon     time.Duration
	Now              func() time.Time
}

// Manager owns the in-memory session and keeps it in step with storage.
// Every transition runs under mu so no caller observes a half-applied change.
type Manager struct {
	storage *repository.AuthStorage
	backend Backend
	logger  *zap.Logger
	cfg     Config

	mu      sync.Mutex
	session domain.Session
	subs    map[int]chan domain.Session
	nextSub int

	cronMu sync.Mutex
	cron   *cron.Cron
}

func New(storage *repository.AuthStorage, backend Backend, logger *zap.Logger, cfg Config) *Manager {
	if cfg.ValidateInterval <= 0 {
		cfg.ValidateInterval = 5 * time.Minute
	}
	if cfg.ExpiringSoon <= 0 {
		cfg.ExpiringSoon = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		storage: storage,
		backend: backend,
		logger:  logger,
		cfg:     cfg,
		session: domain.LoggedOut{},
		subs:    make(map[int]chan domain.Session),
	}
}

// SetAuthData is the only way a LoggedIn session is created.
func (m *Manager) SetAuthData(ctx context.Context, user *domain.UserProfile, tokens domain.TokenPair) error {
	if user == nil {
		return domain.ErrInvalidUser
	}
	if !tokens.Valid() {
		return domain.ErrInvalidTokens
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	log := logger.WithRequestID(ctx, m.logger)

	if err := m.storage.SetUser(ctx, user); err != nil {
		m.rollbackLocked(ctx, log)
		return domain.WrapError(domain.ErrCodeInternal, "persist user", err)
	}
	if err := m.storage.SetTokens(ctx, tokens); err != nil {
		m.rollbackLocked(ctx, log)
		return domain.WrapError(domain.ErrCodeInternal, "persist tokens", err)
	}

	m.setLocked(domain.LoggedIn{User: *user})
	m.verifyStorageLocked(ctx, log)
	log.Info("session established", zap.String("user_id", user.ID), zap.String("role", user.RoleName()))
	return nil
}

// ClearAuthData drops the session from memory and storage. Safe to repeat.
func (m *Manager) ClearAuthData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

// HandleTokenExpired is invoked when the backend rejects the credentials.
// It does not navigate; the next guard evaluation redirects.
func (m *Manager) HandleTokenExpired(ctx context.Context) error {
	logger.WithRequestID(ctx, m.logger).Warn("backend rejected credentials, clearing session")
	return m.ClearAuthData(ctx)
}

// Session returns the current session snapshot.
func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// CurrentUser returns a copy of the principal, nil unless logged in.
func (m *Manager) CurrentUser() *domain.UserProfile {
	return domain.UserOf(m.Session())
}

func (m *Manager) IsAuthenticated() bool {
	return domain.IsAuthenticated(m.Session())
}

// AccessToken reads straight from storage.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	return m.storage.GetAccessToken(ctx)
}

// RefreshToken reads straight from storage.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	return m.storage.GetRefreshToken(ctx)
}

// UpdateAccessToken replaces only the stored access token.
func (m *Manager) UpdateAccessToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storage.SetAccessToken(ctx, token)
}

// RestoreAuthFromStorage hydrates memory from storage when both the profile and a
// live token survived. It reports whether the session is now logged in.
func (m *Manager) RestoreAuthFromStorage(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := logger.WithRequestID(ctx, m.logger)

	user, token, err := m.readStoredLocked(ctx)
	if err != nil {
		log.Warn("restore: storage read failed", zap.Error(err))
		return false
	}
	if user == nil || token == "" {
		return false
	}

	if info := tokencodec.ExpiryInfo(token, m.cfg.Now()); info.IsExpired {
		log.Info("restore: stored token expired, clearing session")
		if err := m.clearLocked(ctx); err != nil {
			log.Error("restore: clear failed", zap.Error(err))
		}
		return false
	}

	m.setLocked(domain.LoggedIn{User: *user})
	log.Debug("restore: session hydrated from storage", zap.String("user_id", user.ID))
	return true
}

// TokenExpiryInfo fails closed: no token or an undecodable token reads as expired.
func (m *Manager) TokenExpiryInfo(ctx context.Context) domain.TokenExpiryInfo {
	token, err := m.storage.GetAccessToken(ctx)
	if err != nil || token == "" {
		return domain.ExpiredInfo()
	}
	return tokencodec.ExpiryInfo(token, m.cfg.Now())
}

func (m *Manager) IsTokenExpiringSoon(ctx context.Context) bool {
	return m.TokenExpiryInfo(ctx).TimeUntilExpiry < m.cfg.ExpiringSoon
}

// Initialize reconciles memory with storage once at startup.
// A lone profile or lone token is kept as Inconsistent rather than cleared,
// since a login may be between its two storage writes.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := logger.WithRequestID(ctx, m.logger)

	user, token, err := m.readStoredLocked(ctx)
	if err != nil {
		return err
	}

	session, expired := storedSession(user, token, m.cfg.Now())
	switch s := session.(type) {
	case domain.Inconsistent:
		log.Warn("stored session is incomplete",
			zap.Bool("has_user", s.User != nil),
			zap.Bool("has_token", s.HasToken))
		m.setLocked(s)
		return nil
	case domain.LoggedIn:
		m.setLocked(s)
		log.Info("session restored at startup", zap.String("user_id", s.User.ID))
		return nil
	}

	if expired {
		log.Info("stored token expired at startup, clearing session")
	}
	return m.clearLocked(ctx)
}

// Inspect reports what Initialize would make of storage without changing
// memory or storage. An expired pair reads as LoggedOut and is left in place.
func (m *Manager) Inspect(ctx context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, token, err := m.readStoredLocked(ctx)
	if err != nil {
		return nil, err
	}
	session, _ := storedSession(user, token, m.cfg.Now())
	return session, nil
}

// ValidateStoredTokens is the background sweep. Unlike the guard path, a token
// that fails to decode is left alone here; only a decodable expired token clears.
func (m *Manager) ValidateStoredTokens(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := logger.WithRequestID(ctx, m.logger)

	user, token, err := m.readStoredLocked(ctx)
	if err != nil {
		log.Warn("validate: storage read failed", zap.Error(err))
		return
	}

	if token == "" {
		_, loggedOut := m.session.(domain.LoggedOut)
		if user != nil || !loggedOut {
			log.Info("validate: no token, clearing stale session")
			if err := m.clearLocked(ctx); err != nil {
				log.Error("validate: clear failed", zap.Error(err))
			}
		}
		return
	}

	info, err := tokencodec.Decode(token, m.cfg.Now())
	if err != nil {
		log.Warn("validate: token could not be decoded, leaving session", zap.Error(err))
		return
	}
	if info.IsExpired {
		log.Info("validate: token expired, clearing session")
		if err := m.clearLocked(ctx); err != nil {
			log.Error("validate: clear failed", zap.Error(err))
		}
		return
	}
	if user != nil && !domain.IsAuthenticated(m.session) {
		log.Info("validate: re-hydrating session from storage", zap.String("user_id", user.ID))
		m.setLocked(domain.LoggedIn{User: *user})
	}
}

// Subscribe replays the current session and then every transition. Slow
// readers only ever see the latest state. The returned func unsubscribes.
func (m *Manager) Subscribe() (<-chan domain.Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.Session, 1)
	ch <- m.session
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Start schedules ValidateStoredTokens every ValidateInterval.
func (m *Manager) Start() error {
	m.cronMu.Lock()
	defer m.cronMu.Unlock()
	if m.cron != nil {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	schedule := fmt.Sprintf("@every %s", m.cfg.ValidateInterval)
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ValidateInterval)
		defer cancel()
		m.ValidateStoredTokens(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	m.cron = c
	m.logger.Info("session validator started", zap.Duration("interval", m.cfg.ValidateInterval))
	return nil
}

// Stop cancels the validator and waits for a running sweep or for ctx.
func (m *Manager) Stop(ctx context.Context) {
	m.cronMu.Lock()
	c := m.cron
	m.cron = nil
	m.cronMu.Unlock()
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	m.logger.Info("session validator stopped")
}

// Login authenticates against the backend and establishes the session.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	if m.backend == nil {
		return nil, domain.ErrBackendDisabled
	}
	result, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.SetAuthData(ctx, &result.User, result.Tokens); err != nil {
		return nil, err
	}
	user := result.User
	return &user, nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	if m.backend == nil {
		return "", domain.ErrBackendDisabled
	}
	refresh, err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", domain.ErrNoSession
	}
	access, err := m.backend.Refresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	if err := m.UpdateAccessToken(ctx, access); err != nil {
		return "", err
	}
	return access, nil
}

// Logout notifies the backend and clears local state whatever the outcome.
func (m *Manager) Logout(ctx context.Context) error {
	if m.backend != nil {
		if err := m.backend.Logout(ctx); err != nil {
			logger.WithRequestID(ctx, m.logger).Warn("backend logout failed, clearing locally", zap.Error(err))
		}
	}
	return m.ClearAuthData(ctx)
}

func (m *Manager) readStoredLocked(ctx context.Context) (*domain.UserProfile, string, error) {
	user, err := m.storage.GetUser(ctx)
	if err != nil {
		return nil, "", err
	}
	token, err := m.storage.GetAccessToken(ctx)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.setLocked(domain.LoggedOut{})
	if err := m.storage.Clear(ctx); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "clear stored session", err)
	}
	return nil
}

func (m *Manager) rollbackLocked(ctx context.Context, log *zap.Logger) {
	if err := m.clearLocked(ctx); err != nil {
		log.Error("rollback of partial session write failed", zap.Error(err))
	}
}

func (m *Manager) verifyStorageLocked(ctx context.Context, log *zap.Logger) {
	access, accessErr := m.storage.GetAccessToken(ctx)
	refresh, refreshErr := m.storage.GetRefreshToken(ctx)
	if access == "" || refresh == "" || accessErr != nil || refreshErr != nil {
		log.Error("token storage verification failed",
			zap.Bool("has_access_token", access != ""),
			zap.Bool("has_refresh_token", refresh != ""),
			zap.NamedError("access_error", accessErr),
			zap.NamedError("refresh_error", refreshErr))
	}
}

// storedSession classifies a stored profile and access token. expired is set
// only for a complete pair whose token has lapsed.
func storedSession(user *domain.UserProfile, token string, now time.Time) (domain.Session, bool) {
	switch {
	case user == nil && token == "":
		return domain.LoggedOut{}, false
	case user == nil || token == "":
		return domain.Inconsistent{User: user, HasToken: token != ""}, false
	}
	if tokencodec.ExpiryInfo(token, now).IsExpired {
		return domain.LoggedOut{}, true
	}
	return domain.LoggedIn{User: *user}, false
}

// setLocked publishes only real transitions.
func (m *Manager) setLocked(next domain.Session) {
	if sameSession(m.session, next) {
		return
	}
	m.session = next
	for _, ch := range m.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

func sameSession(a, b domain.Session) bool {
	switch av := a.(type) {
	case domain.LoggedOut:
		_, ok := b.(domain.LoggedOut)
		return ok
	case domain.LoggedIn:
		bv, ok := b.(domain.LoggedIn)
		return ok && av.User.ID == bv.User.ID && av.User.UpdatedAt.Equal(bv.User.UpdatedAt) && av.User.Role == bv.User.Role
	default:
		return false
	}
}
