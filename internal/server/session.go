package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/vidsrt/internal/transcribe"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// reports whether no further transitions will happen
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Session is one uploaded file and its pipeline run. Every change closes
// the current notification channel and installs a fresh one, so a reader
// holding a channel from Snapshot wakes on the next transition.
type Session struct {
	ID        string
	FileName  string
	CreatedAt time.Time

	mu      sync.Mutex
	status  Status
	stages  []string
	result  *transcribe.Result
	errMsg  string
	cancel  context.CancelFunc
	dir     string
	changed chan struct{}
}

// point-in-time view of a session, safe to serialize
type Snapshot struct {
	ID             string   `json:"id"`
	FileName       string   `json:"file_name"`
	Status         Status   `json:"status"`
	Stages         []string `json:"stages"`
	Error          string   `json:"error,omitempty"`
	Segments       int      `json:"segments"`
	Language       string   `json:"language,omitempty"`
	Duration       float64  `json:"duration,omitempty"`
	ProcessingTime float64  `json:"processing_time,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// Snapshot returns the current state and the channel closed on the next
// change.
func (s *Session) Snapshot() (Snapshot, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		FileName:  s.FileName,
		Status:    s.status,
		Stages:    append(make([]string, 0, len(s.stages)), s.stages...),
		Error:     s.errMsg,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.result != nil {
		snap.Segments = len(s.result.Segments)
		snap.Language = s.result.Language
		snap.Duration = s.result.Duration.Seconds()
		snap.ProcessingTime = s.result.ProcessingTime.Seconds()
	}
	return snap, s.changed
}

// result of a completed run, nil otherwise
func (s *Session) Result() *transcribe.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleted {
		return nil
	}
	return s.result
}

func (s *Session) update(fn func(s *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	close(s.changed)
	s.changed = make(chan struct{})
}

// start moves a pending session to running. It fails if the session was
// already cancelled.
func (s *Session) start(cancel context.CancelFunc) bool {
	ok := false
	s.update(func(s *Session) {
		if s.status != StatusPending {
			return
		}
		s.status = StatusRunning
		s.cancel = cancel
		ok = true
	})
	return ok
}

func (s *Session) addStage(stage string) {
	s.update(func(s *Session) {
		s.stages = append(s.stages, stage)
	})
}

func (s *Session) complete(result *transcribe.Result) {
	s.update(func(s *Session) {
		if s.status.Done() {
			return
		}
		s.status = StatusCompleted
		s.result = result
	})
}

func (s *Session) fail(msg string) {
	s.update(func(s *Session) {
		if s.status.Done() {
			return
		}
		s.status = StatusFailed
		s.errMsg = msg
	})
}

func (s *Session) stop() {
	var cancel context.CancelFunc
	s.update(func(s *Session) {
		cancel = s.cancel
		if !s.status.Done() {
			s.status = StatusCancelled
			s.errMsg = errorPrefix + "processing cancelled"
		}
	})
	if cancel != nil {
		cancel()
	}
}

// Store holds the sessions of a running server.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tempDir  string
}

// NewStore keeps upload directories under tempDir; empty uses the system
// default.
func NewStore(tempDir string) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		tempDir:  tempDir,
	}
}

// Create registers a pending session with its own upload directory.
func (st *Store) Create(fileName string) (*Session, error) {
	dir, err := os.MkdirTemp(st.tempDir, "vidsrt-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		FileName:  fileName,
		CreatedAt: time.Now(),
		status:    StatusPending,
		dir:       dir,
		changed:   make(chan struct{}),
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	return sess, nil
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete cancels a running pipeline and removes the session's files.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return false
	}
	sess.stop()
	_ = os.RemoveAll(sess.dir)
	return true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close deletes every session.
func (st *Store) Close() {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	for _, id := range ids {
		st.Delete(id)
	}
}
