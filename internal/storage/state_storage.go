package storage

import (
	"maps"
	"sync"
)

// Session is the card dialogue state of one chat.
type Session struct {
	ChannelID  string
	TemplateID string
	// Step indexes the template's form fields; past the last field the
	// dialogue waits for the quality choice.
	Step    int
	Answers map[string]string
	Uploads map[string][]byte
}

func (s *Session) SetAnswer(key, value string) {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	s.Answers[key] = value
}

func (s *Session) SetUpload(key string, data []byte) {
	if s.Uploads == nil {
		s.Uploads = make(map[string][]byte)
	}
	s.Uploads[key] = data
}

type chatState struct {
	session    *Session
	processing bool
}

// RenderStateStore keeps the dialogue session and the busy flag of every chat.
type RenderStateStore struct {
	chats map[int64]*chatState
	turns map[int64]*sync.Mutex
	mu    sync.RWMutex
}

func NewRenderStateStore() *RenderStateStore {
	return &RenderStateStore{
		chats: make(map[int64]*chatState),
		turns: make(map[int64]*sync.Mutex),
	}
}

// Lock serialises the updates of one chat so that a read-modify-write of its
// session is not interleaved with another. The returned unlock is safe to
// call more than once.
func (s *RenderStateStore) Lock(chatID int64) (unlock func()) {
	s.mu.Lock()
	turn, ok := s.turns[chatID]
	if !ok {
		turn = &sync.Mutex{}
		s.turns[chatID] = turn
	}
	s.mu.Unlock()

	turn.Lock()
	return sync.OnceFunc(turn.Unlock)
}

// Session returns a copy of the chat's session.
func (s *RenderStateStore) Session(chatID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.chats[chatID]
	if !ok || st.session == nil {
		return Session{}, false
	}
	cp := *st.session
	cp.Answers = maps.Clone(st.session.Answers)
	cp.Uploads = maps.Clone(st.session.Uploads)
	return cp, true
}

func (s *RenderStateStore) SetSession(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(chatID)
	st.session = &sess
}

// Reset drops the dialogue but keeps a running render marked as busy.
func (s *RenderStateStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.chats[chatID]
	if !ok {
		return
	}
	if !st.processing {
		delete(s.chats, chatID)
		return
	}
	st.session = nil
}

func (s *RenderStateStore) TryStart(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(chatID)
	if st.processing {
		return false
	}
	st.processing = true
	return true
}

func (s *RenderStateStore) Finish(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.chats[chatID]
	if !ok {
		return
	}
	st.processing = false
	if st.session == nil {
		delete(s.chats, chatID)
	}
}

func (s *RenderStateStore) IsProcessing(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.chats[chatID]
	return ok && st.processing
}

func (s *RenderStateStore) state(chatID int64) *chatState {
	st, ok := s.chats[chatID]
	if !ok {
		st = &chatState{}
		s.chats[chatID] = st
	}
	return st
}
