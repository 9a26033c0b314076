package metadata

import (
	"fmt"
	"sort"
	"time"
)

// ============================================================================
// User registry
// ============================================================================

// RegisterUser records a user on first login. The registry is append-only;
// registering an existing user is a no-op.
func (s *Store) RegisterUser(username string) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, ok := s.users[username]; !ok {
		s.users[username] = time.Now()
	}
}

// UserExists reports whether username has ever logged in.
func (s *Store) UserExists(username string) bool {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	_, ok := s.users[username]
	return ok
}

// ListUsers returns all registered usernames, sorted.
func (s *Store) ListUsers() []string {
	s.usersMu.Lock()
	out := make([]string, 0, len(s.users))
	for name := range s.users {
		out = append(out, name)
	}
	s.usersMu.Unlock()

	sort.Strings(out)
	return out
}

// ============================================================================
// Active sessions (single-session gate)
// ============================================================================

// BeginSession enters a session for username. At most one session may be
// active per username cluster-wide; a second login is rejected with a
// description of the pre-existing session.
func (s *Store) BeginSession(username, remoteAddr string) error {
	if username == "" {
		return NewError(ErrBadRequest, "empty username")
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if existing, ok := s.sessions[username]; ok {
		return NewError(ErrSessionActive,
			"user %q already logged in from %s since %s",
			username, existing.RemoteAddr, existing.Since.Format(time.RFC3339))
	}
	s.sessions[username] = &Session{
		Username:   username,
		RemoteAddr: remoteAddr,
		Since:      time.Now(),
	}
	return nil
}

// EndSession leaves username's session. Unknown usernames are ignored.
func (s *Store) EndSession(username string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, username)
}

// ActiveSessionCount returns the number of live sessions.
func (s *Store) ActiveSessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

// ActiveSessions returns a snapshot of the session set sorted by username.
func (s *Store) ActiveSessions() []Session {
	s.sessionsMu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.sessionsMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// DescribeSession formats a session line for listings.
func DescribeSession(sess Session) string {
	return fmt.Sprintf("%s\t%s\t%s", sess.Username, sess.RemoteAddr, sess.Since.Format(time.RFC3339))
}
