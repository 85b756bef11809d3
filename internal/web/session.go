package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
	"golang.org/x/oauth2"
)

// SessionCookie names the cookie carrying the session ID.
const SessionCookie = "blockify_session"

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 24 * time.Hour

// Session holds one browser's OAuth state, token and the catalogs it has fetched.
type Session struct {
	ID string

	mu       sync.Mutex
	state    string
	token    *oauth2.Token
	catalogs map[string]*models.PlaylistExport
	seen     time.Time
}

// Token returns the session's token, or nil before the callback completes.
func (s *Session) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken stores token. Catalogs fetched under a previous token are dropped.
func (s *Session) SetToken(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || token == nil || s.token.RefreshToken != token.RefreshToken {
		s.catalogs = nil
	}
	s.token = token
}

// SetState records the state parameter of a pending authorization.
func (s *Session) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// ConsumeState reports whether state matches the pending authorization and clears it.
func (s *Session) ConsumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.state != "" && s.state == state
	s.state = ""
	return ok
}

// Catalog returns a memoised catalog.
func (s *Session) Catalog(playlistID string) (*models.PlaylistExport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.catalogs[playlistID]
	return c, ok
}

// SetCatalog memoises a catalog under the ID it was requested with and its own ID.
func (s *Session) SetCatalog(playlistID string, c *models.PlaylistExport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogs == nil {
		s.catalogs = make(map[string]*models.PlaylistExport)
	}
	s.catalogs[playlistID] = c
	if c.Playlist.ID != "" {
		s.catalogs[c.Playlist.ID] = c
	}
}

// SessionStore keeps sessions in memory, keyed by ID.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store that forgets sessions idle for longer than ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
}

// Get returns a live session and marks it as seen.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}

	now := st.now()
	if now.Sub(s.seen) > st.ttl {
		delete(st.sessions, id)
		return nil, false
	}
	s.seen = now
	return s, true
}

// Create starts a new session with a random ID.
func (st *SessionStore) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.prune()
	s := &Session{ID: shared.GenerateID(), seen: st.now()}
	st.sessions[s.ID] = s
	return s
}

// Delete forgets a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// prune drops expired sessions. Callers hold st.mu.
func (st *SessionStore) prune() {
	now := st.now()
	for id, s := range st.sessions {
		if now.Sub(s.seen) > st.ttl {
			delete(st.sessions, id)
		}
	}
}

// lookup returns the request's session, if its cookie names a live one.
func (st *SessionStore) lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return st.Get(c.Value)
}

// ensure returns the request's session, creating one and setting its cookie when needed.
func (st *SessionStore) ensure(w http.ResponseWriter, r *http.Request) *Session {
	if s, ok := st.lookup(r); ok {
		return s
	}

	s := st.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(st.ttl.Seconds()),
	})
	return s
}
