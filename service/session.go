package service

import (
	"context"
	"sync"

	"branchchat/conversation"
	"branchchat/model"
)

type TurnState int

const (
	TurnIdle TurnState = iota
	TurnSubmitting
	TurnAwaitingModel
	TurnPersisting
	TurnErrored
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnSubmitting:
		return "submitting"
	case TurnAwaitingModel:
		return "awaiting_model"
	case TurnPersisting:
		return "persisting"
	case TurnErrored:
		return "errored"
	}
	return "unknown"
}

// busy reports whether a turn is in flight. Errored does not block the next one.
func (s TurnState) busy() bool {
	return s == TurnSubmitting || s == TurnAwaitingModel || s == TurnPersisting
}

type Settings struct {
	Quality conversation.Quality `json:"quality"`
	Tone    conversation.Tone    `json:"tone"`
}

func DefaultSettings() Settings {
	return Settings{Quality: conversation.QualityNormal, Tone: conversation.ToneNormal}
}

// Session is the volatile per-user state: the ordered message list, the
// highlights and the history target. Highlights are never persisted.
type Session struct {
	mu sync.Mutex

	userID        string
	loaded        bool
	messages      []model.Message
	highlights    []conversation.HighlightedSelection
	pending       *conversation.Selection
	historyTarget string
	state         TurnState
	lastError     string
	settings      Settings
}

// SessionSnapshot is a copy of a session safe to read without the lock.
type SessionSnapshot struct {
	Messages      []model.Message
	Highlights    []conversation.HighlightedSelection
	Pending       *conversation.Selection
	HistoryTarget string
	State         TurnState
	LastError     string
	Settings      Settings
}

func (s *Session) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Messages:      append([]model.Message(nil), s.messages...),
		Highlights:    append([]conversation.HighlightedSelection(nil), s.highlights...),
		HistoryTarget: s.historyTarget,
		State:         s.state,
		LastError:     s.lastError,
		Settings:      s.settings,
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	return snap
}

// lookup finds a live message by id.
func (s *Session) lookup(id string) (*model.Message, bool) {
	for i := range s.messages {
		if s.messages[i].MessageID == id && !s.messages[i].Deleted {
			return &s.messages[i], true
		}
	}
	return nil, false
}

func (s *Session) removeHighlight(childID string) {
	kept := s.highlights[:0]
	for _, h := range s.highlights {
		if h.ChildMessageID != childID {
			kept = append(kept, h)
		}
	}
	s.highlights = kept
}

// SessionRegistry holds one session per user.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = &Session{userID: userID, settings: DefaultSettings()}
		r.sessions[userID] = s
	}
	return s
}

type requestIDKey struct{}

// WithRequestID tags ctx so service logs can be matched with access logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "-"
}
