// Package history owns the durable conversation ledger: an in-memory map of
// session id to message log, backed by a single JSON file that is rewritten
// in full on every mutation.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/madlen/chat-backend/internal/observability"
	"github.com/madlen/chat-backend/internal/tracing"
)

const tracerName = "madlen.history"

// Store is the exclusive owner of all session history. Reads return deep
// copies; mutations are serialized and the backing file is durably rewritten
// before the mutating call returns.
type Store struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	loadOnce sync.Once

	mu       sync.RWMutex
	sessions map[string]*SessionHistory
}

// NewStore creates a Store backed by the file at path. The file is not read
// until the first operation.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:     path,
		logger:   logger.With().Str("component", "history").Logger(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*SessionHistory),
	}
}

// ensureLoaded performs the lazy initial load exactly once. Concurrent
// callers arriving during the load all block on the same in-flight attempt.
// A load failure other than a missing file is downgraded to a loud warning
// and the store proceeds empty; this is the only place a file error does not
// propagate.
func (s *Store) ensureLoaded(ctx context.Context) {
	s.loadOnce.Do(func() {
		_, span := tracing.StartSpan(ctx, tracerName, "history.load")
		defer span.End()

		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				// Self-healing bootstrap: persist an empty snapshot so the
				// file exists from the first moment of operation.
				if perr := s.writeSnapshot(nil); perr != nil {
					span.RecordError(perr)
					s.logger.Warn().Err(perr).Str("path", s.path).Msg("Unable to bootstrap history file")
				}
				observability.SetActiveSessions(0)
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error().Err(err).Str("path", s.path).Msg("Unable to load history file, starting with empty state")
			return
		}

		var parsed []SessionHistory
		if err := json.Unmarshal(data, &parsed); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error().Err(err).Str("path", s.path).Msg("Unable to parse history file, starting with empty state")
			return
		}

		for i := range parsed {
			sess := parsed[i]
			s.sessions[sess.SessionID] = &sess
		}

		span.SetAttributes(attribute.Int("history.session_count", len(s.sessions)))
		s.logger.Info().
			Int("sessions", len(s.sessions)).
			Int("bytes", len(data)).
			Str("path", s.path).
			Msg("History loaded")
		observability.SetActiveSessions(len(s.sessions))
	})
}

// Get returns a copy of the session, or false if it is unknown.
func (s *Store) Get(ctx context.Context, sessionID string) (*SessionHistory, bool) {
	s.ensureLoaded(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// ListAll returns copies of every known session ordered by UpdatedAt
// descending. Equal timestamps fall back to ascending session id so the
// ordering is deterministic.
func (s *Store) ListAll(ctx context.Context) []*SessionHistory {
	s.ensureLoaded(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*SessionHistory, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Append assigns an id and timestamp to the draft and appends it to the
// session, creating the session if it does not exist yet. The full store is
// persisted before Append returns; a write failure propagates and the
// in-memory mutation is rolled back.
func (s *Store) Append(ctx context.Context, sessionID string, draft Draft) (*SessionHistory, error) {
	if sessionID == "" {
		return nil, &StoreError{Op: "append", Err: fmt.Errorf("session id cannot be empty")}
	}
	if draft.Role == "" {
		return nil, &StoreError{Op: "append", Err: fmt.Errorf("message role cannot be empty")}
	}

	s.ensureLoaded(ctx)

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"history.append",
		attribute.String("history.session_id", sessionID),
		attribute.String("history.role", string(draft.Role)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.RecordHistoryPersist(time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	entry := Message{
		ID:        s.newID(),
		Role:      draft.Role,
		Content:   draft.Content,
		CreatedAt: now,
		Model:     draft.Model,
		ImageURLs: draft.ImageURLs,
		Error:     draft.Error,
	}

	sess, existed := s.sessions[sessionID]
	if !existed {
		sess = &SessionHistory{SessionID: sessionID}
		s.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, entry)
	sess.UpdatedAt = now

	if err := s.persistLocked(ctx); err != nil {
		sess.Messages = sess.Messages[:len(sess.Messages)-1]
		if !existed {
			delete(s.sessions, sessionID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	observability.SetActiveSessions(len(s.sessions))
	span.SetAttributes(attribute.Int("history.message_count", len(sess.Messages)))
	return sess.clone(), nil
}

// Replace overwrites a whole session and persists the store.
func (s *Store) Replace(ctx context.Context, session SessionHistory) error {
	if session.SessionID == "" {
		return &StoreError{Op: "replace", Err: fmt.Errorf("session id cannot be empty")}
	}

	s.ensureLoaded(ctx)

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"history.replace",
		attribute.String("history.session_id", session.SessionID),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.sessions[session.SessionID]
	s.sessions[session.SessionID] = session.clone()

	if err := s.persistLocked(ctx); err != nil {
		if existed {
			s.sessions[session.SessionID] = prev
		} else {
			delete(s.sessions, session.SessionID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	observability.SetActiveSessions(len(s.sessions))
	return nil
}

// Delete removes a session and persists the store. Deleting an unknown
// session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.ensureLoaded(ctx)

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"history.delete",
		attribute.String("history.session_id", sessionID),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.sessions[sessionID]
	if !existed {
		return nil
	}
	delete(s.sessions, sessionID)

	if err := s.persistLocked(ctx); err != nil {
		s.sessions[sessionID] = prev
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	observability.SetActiveSessions(len(s.sessions))
	return nil
}

// persistLocked serializes every known session and atomically replaces the
// backing file. Callers must hold the write lock.
func (s *Store) persistLocked(ctx context.Context) error {
	_, span := tracing.StartSpan(ctx, tracerName, "history.persist")
	defer span.End()

	all := make([]*SessionHistory, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	// Stable file ordering keeps the snapshot diffable between writes.
	sort.Slice(all, func(i, j int) bool { return all[i].SessionID < all[j].SessionID })

	if err := s.writeSnapshot(all); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// writeSnapshot writes the serialized sessions to a temp file in the target
// directory, fsyncs it, and renames it over the backing file so readers never
// observe a truncated snapshot.
func (s *Store) writeSnapshot(all []*SessionHistory) error {
	if all == nil {
		all = []*SessionHistory{}
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return &StoreError{Op: "marshal", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StoreError{Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return &StoreError{Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StoreError{Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StoreError{Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StoreError{Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StoreError{Op: "rename", Err: err}
	}
	return nil
}
