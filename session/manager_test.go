package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/session"
	"github.com/stretchr/testify/require"
)

func testClient() *clients.Client {
	return &clients.Client{
		ID:          "client-1",
		RedirectURI: "https://app/cb",
		Type:        clients.ClientTypeConfidential,
	}
}

func acceptedSession(t *testing.T, m *session.Manager) *session.AuthSession {
	t.Helper()
	s := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)
	require.NoError(t, m.AwaitConsent(s.ID, []string{"read"}, "xyz"))
	require.NoError(t, m.BindOwner(s.ID, "owner-1"))
	require.NoError(t, m.Accept(s.ID, []string{"read"}))
	return s
}

func TestLifecycle(t *testing.T) {
	m := session.NewManager()
	s := acceptedSession(t, m)

	code, err := m.IssueCode(s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	restored, err := m.RestoreSession(code)
	require.NoError(t, err)
	require.Equal(t, "owner-1", restored.Owner)
	require.Equal(t, []string{"read"}, restored.GrantedScope)
	require.Equal(t, session.StatusConsumed, restored.Status)

	// Consumed means gone.
	_, err = m.Snapshot(s.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestCodeSingleUse(t *testing.T) {
	m := session.NewManager()
	s := acceptedSession(t, m)

	code, err := m.IssueCode(s.ID)
	require.NoError(t, err)

	_, err = m.RestoreSession(code)
	require.NoError(t, err)

	_, err = m.RestoreSession(code)
	require.ErrorIs(t, err, session.ErrCodeNotFound)
}

func TestConcurrentExchangeSingleWinner(t *testing.T) {
	m := session.NewManager()
	s := acceptedSession(t, m)

	code, err := m.IssueCode(s.ID)
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.RestoreSession(code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, session.ErrCodeNotFound)
		}
	}
	require.Equal(t, 1, successes)
}

func TestTimeoutEvaluatedAtUse(t *testing.T) {
	now := time.Now()
	m := session.NewManager(
		session.WithInactivityWindow(time.Minute),
		session.WithNowFunc(func() time.Time { return now }),
	)
	s := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)

	require.NoError(t, m.UpdateActivity(s.ID))

	// Past the window, even without a sweep the session is dead.
	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, m.UpdateActivity(s.ID), session.ErrSessionTimeout)
	_, err := m.Snapshot(s.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRestoreAfterTimeout(t *testing.T) {
	now := time.Now()
	m := session.NewManager(
		session.WithInactivityWindow(time.Minute),
		session.WithNowFunc(func() time.Time { return now }),
	)
	s := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)
	require.NoError(t, m.AwaitConsent(s.ID, []string{"read"}, ""))
	require.NoError(t, m.Accept(s.ID, []string{"read"}))
	code, err := m.IssueCode(s.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.RestoreSession(code)
	require.ErrorIs(t, err, session.ErrSessionTimeout)

	// Eviction already happened; replay is indistinguishable from unknown.
	_, err = m.RestoreSession(code)
	require.ErrorIs(t, err, session.ErrCodeNotFound)
}

func TestSweepEvictsExpiredOnly(t *testing.T) {
	now := time.Now()
	m := session.NewManager(
		session.WithInactivityWindow(time.Minute),
		session.WithNowFunc(func() time.Time { return now }),
	)
	stale := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)
	now = now.Add(2 * time.Minute)
	fresh := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)

	require.Equal(t, 1, m.Sweep())
	require.Equal(t, 1, m.Len())

	_, err := m.Snapshot(stale.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = m.Snapshot(fresh.ID)
	require.NoError(t, err)
}

func TestRejectDestroysSession(t *testing.T) {
	m := session.NewManager()
	s := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)
	require.NoError(t, m.AwaitConsent(s.ID, []string{"read"}, ""))

	require.NoError(t, m.Reject(s.ID))
	_, err := m.Snapshot(s.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestInvalidTransitions(t *testing.T) {
	m := session.NewManager()
	s := m.Create(testClient(), oauth2.CodeResponseType, "https://app/cb", false)

	// Accept before consent was requested.
	require.ErrorIs(t, m.Accept(s.ID, []string{"read"}), session.ErrInvalidTransition)

	// Code issue before acceptance.
	_, err := m.IssueCode(s.ID)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}
