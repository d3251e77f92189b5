package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/pkg/errors"
)

const codeGenerationLength = 32

// Session failure signals. ErrSessionTimeout is a distinct internal signal;
// the grant boundary translates it to invalid_grant.
var (
	ErrSessionNotFound   = errors.New("auth session not found")
	ErrSessionTimeout    = errors.New("auth session timed out")
	ErrCodeNotFound      = errors.New("authorization code not found")
	ErrInvalidTransition = errors.New("invalid auth session transition")
)

// Manager holds the short-lived per-authorization-attempt state. A single
// mutex covers the session table and the code index, so code exchange,
// activity updates and background eviction are all check-then-act against
// the same primitive: a session is never returned to one caller and evicted
// by the sweeper in the same instant.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*AuthSession
	codes    map[string]string // authorization code -> session id

	inactivity time.Duration
	nowFunc    func() time.Time
}

// ManagerOption modifies a Manager at construction time.
type ManagerOption func(*Manager)

// WithInactivityWindow sets how long a session may sit untouched before it
// expires.
func WithInactivityWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.inactivity = d
	}
}

// WithNowFunc sets the time source (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates an empty session manager.
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		sessions:   make(map[string]*AuthSession),
		codes:      make(map[string]string),
		inactivity: 10 * time.Minute,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create allocates a new session for an authorization attempt and starts its
// inactivity window.
func (m *Manager) Create(client *clients.Client, responseType oauth2.ResponseType, redirectURI string, dynamic bool) *AuthSession {
	s := &AuthSession{
		ID:              uuid.New().String(),
		Client:          client,
		ResponseType:    responseType,
		RedirectURI:     redirectURI,
		DynamicRedirect: dynamic,
		Status:          StatusCreated,
		LastActivity:    m.nowFunc(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return copySession(s)
}

// Snapshot returns a copy of the session without touching its activity.
func (m *Manager) Snapshot(id string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	return copySession(s), nil
}

// UpdateActivity resets the inactivity window. Expiry is evaluated here, at
// time of use, not only by the background sweep, so a raced sweeper cannot
// extend a session that already timed out.
func (m *Manager) UpdateActivity(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return err
	}
	s.LastActivity = m.nowFunc()
	return nil
}

// AwaitConsent records the requested scope and the client's CSRF state and
// moves the session in front of the consent collaborator.
func (m *Manager) AwaitConsent(id string, requestedScope []string, clientState string) error {
	return m.update(id, func(s *AuthSession) error {
		if s.Status != StatusCreated && s.Status != StatusAwaitingConsent {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.Status, StatusAwaitingConsent)
		}
		s.RequestedScope = append([]string(nil), requestedScope...)
		s.ClientState = clientState
		s.Status = StatusAwaitingConsent
		return nil
	})
}

// BindOwner attaches the resource-owner identity once login completed.
func (m *Manager) BindOwner(id, owner string) error {
	return m.update(id, func(s *AuthSession) error {
		if s.terminal() {
			return errors.Wrapf(ErrInvalidTransition, "owner bind on %s session", s.Status)
		}
		s.Owner = owner
		return nil
	})
}

// Accept records the scopes the owner approved.
func (m *Manager) Accept(id string, grantedScope []string) error {
	return m.update(id, func(s *AuthSession) error {
		if s.Status != StatusAwaitingConsent {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.Status, StatusAccepted)
		}
		s.GrantedScope = append([]string(nil), grantedScope...)
		s.Status = StatusAccepted
		return nil
	})
}

// Reject terminates the attempt with the owner's refusal and destroys the
// session; the caller surfaces access_denied.
func (m *Manager) Reject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return err
	}
	s.Status = StatusRejected
	m.removeLocked(s)
	return nil
}

// IssueCode allocates a single-use authorization code for an accepted
// session and indexes it for RestoreSession.
func (m *Manager) IssueCode(id string) (string, error) {
	buf := make([]byte, codeGenerationLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "[Manager.IssueCode] rand.Read")
	}
	code := base64.RawURLEncoding.EncodeToString(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return "", err
	}
	if s.Status != StatusAccepted {
		return "", errors.Wrapf(ErrInvalidTransition, "code issue on %s session", s.Status)
	}
	if s.code != "" {
		delete(m.codes, s.code)
	}
	s.code = code
	m.codes[code] = s.ID
	s.LastActivity = m.nowFunc()
	return code, nil
}

// RestoreSession resolves a previously issued authorization code back to its
// session and consumes both in the same critical section: of two concurrent
// exchanges of one code, exactly one receives the session, the other
// ErrCodeNotFound. A timed-out session is evicted and reported as
// ErrSessionTimeout.
func (m *Manager) RestoreSession(code string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	s, ok := m.sessions[id]
	if !ok {
		delete(m.codes, code)
		return nil, ErrCodeNotFound
	}
	if m.expiredLocked(s) {
		m.removeLocked(s)
		return nil, ErrSessionTimeout
	}

	s.Status = StatusConsumed
	m.removeLocked(s)
	return copySession(s), nil
}

// Consume finishes an attempt that never issues a code (implicit flow: the
// token is minted directly) and destroys the session.
func (m *Manager) Consume(id string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	s.Status = StatusConsumed
	m.removeLocked(s)
	return copySession(s), nil
}

// Sweep evicts sessions whose inactivity window elapsed. It shares the
// removal primitive with RestoreSession, so eviction is idempotent with
// concurrent foreground calls.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, s := range m.sessions {
		if m.expiredLocked(s) {
			m.removeLocked(s)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) update(id string, mutate func(*AuthSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.liveLocked(id)
	if err != nil {
		return err
	}
	if err := mutate(s); err != nil {
		return err
	}
	s.LastActivity = m.nowFunc()
	return nil
}

// liveLocked resolves a session and applies the at-use expiry check.
func (m *Manager) liveLocked(id string) (*AuthSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.expiredLocked(s) {
		m.removeLocked(s)
		return nil, ErrSessionTimeout
	}
	return s, nil
}

func (m *Manager) expiredLocked(s *AuthSession) bool {
	return m.nowFunc().Sub(s.LastActivity) > m.inactivity
}

func (m *Manager) removeLocked(s *AuthSession) {
	delete(m.sessions, s.ID)
	if s.code != "" {
		delete(m.codes, s.code)
	}
}
