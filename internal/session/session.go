// Package session implements the session manager (spec.md §4.6): implicit,
// file-persisted current-session tracking layered on top of
// internal/storage's session CRUD. Grounded on the teacher's
// internal/sessions hierarchy/expiry state-file conventions, generalized
// from a multi-tier hierarchy to a single current-session pointer per
// project.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// stateFileName is the session state file under a project's .omni-cortex
// directory (spec.md §6.3).
const stateFileName = "current_session.json"

// state is the on-disk shape of current_session.json (spec.md §6.3).
type state struct {
	CurrentSessionID *string    `json:"current_session_id"`
	StartedAt        *time.Time `json:"started_at"`
}

// Manager tracks the current session for one project catalog.
type Manager struct {
	store       *storage.Engine
	statePath   string
	projectPath string

	mu sync.Mutex
}

// New creates a session Manager. homeDir is the directory holding
// current_session.json (typically "<project>/.omni-cortex").
func New(store *storage.Engine, homeDir, projectPath string) *Manager {
	return &Manager{
		store:       store,
		statePath:   filepath.Join(homeDir, stateFileName),
		projectPath: projectPath,
	}
}

// Current returns the session id the next hook event will be assigned to,
// starting a new session if the state file is absent or stale (spec.md §4.6
// step 1-2).
func (m *Manager) Current(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(ctx)
}

func (m *Manager) currentLocked(ctx context.Context) (string, error) {
	st, err := m.readState()
	if err != nil {
		return "", err
	}
	if st.CurrentSessionID != nil && *st.CurrentSessionID != "" {
		if sess, err := m.store.GetSession(ctx, *st.CurrentSessionID); err == nil && sess.EndedAt == nil {
			return *st.CurrentSessionID, nil
		}
		// State file points at a session the catalog no longer has, or one
		// that has already ended (e.g. an external process ended it); fall
		// through and start a fresh one.
	}

	sess, err := m.store.StartSession(ctx, m.projectPath)
	if err != nil {
		return "", err
	}
	if err := m.writeState(sess.ID, sess.StartedAt); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// AssignEvent returns the session id a hook event should be recorded against
// (spec.md §4.6 step 3), starting a session implicitly if needed.
func (m *Manager) AssignEvent(ctx context.Context, eventType cortexmodels.EventType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID, err := m.currentLocked(ctx)
	if err != nil {
		return "", err
	}

	if eventType == cortexmodels.EventStop {
		if _, err := m.store.EndSession(ctx, sessionID); err != nil {
			return "", err
		}
		if err := m.clearState(); err != nil {
			return "", err
		}
	}

	return sessionID, nil
}

// StartExplicit starts a new session via the tool surface (cortex_start_session).
// An explicit start while one is current ends the current one first
// (spec.md §4.6).
func (m *Manager) StartExplicit(ctx context.Context, projectPath string) (cortexmodels.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if projectPath == "" {
		projectPath = m.projectPath
	}

	st, err := m.readState()
	if err != nil {
		return cortexmodels.Session{}, err
	}
	if st.CurrentSessionID != nil && *st.CurrentSessionID != "" {
		if _, err := m.store.EndSession(ctx, *st.CurrentSessionID); err != nil && corterrors.CodeFor(err) != corterrors.CodeNotFound {
			return cortexmodels.Session{}, err
		}
	}

	sess, err := m.store.StartSession(ctx, projectPath)
	if err != nil {
		return cortexmodels.Session{}, err
	}
	if err := m.writeState(sess.ID, sess.StartedAt); err != nil {
		return cortexmodels.Session{}, err
	}
	return sess, nil
}

// EndExplicit ends the current session via the tool surface
// (cortex_end_session).
func (m *Manager) EndExplicit(ctx context.Context) (cortexmodels.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.readState()
	if err != nil {
		return cortexmodels.Session{}, err
	}
	if st.CurrentSessionID == nil || *st.CurrentSessionID == "" {
		return cortexmodels.Session{}, fmt.Errorf("%w: no current session", corterrors.ErrNotFound)
	}

	sess, err := m.store.EndSession(ctx, *st.CurrentSessionID)
	if err != nil {
		return cortexmodels.Session{}, err
	}
	if err := m.clearState(); err != nil {
		return cortexmodels.Session{}, err
	}
	return sess, nil
}

func (m *Manager) readState() (state, error) {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return state{}, nil
		}
		return state{}, fmt.Errorf("%w: read session state: %v", corterrors.ErrIO, err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}, fmt.Errorf("%w: corrupt session state file: %v", corterrors.ErrIO, err)
	}
	return st, nil
}

func (m *Manager) writeState(sessionID string, startedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		return fmt.Errorf("%w: create session state directory: %v", corterrors.ErrIO, err)
	}
	st := state{CurrentSessionID: &sessionID, StartedAt: &startedAt}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode session state: %v", corterrors.ErrInternal, err)
	}
	if err := os.WriteFile(m.statePath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write session state: %v", corterrors.ErrIO, err)
	}
	return nil
}

func (m *Manager) clearState() error {
	st := state{}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode session state: %v", corterrors.ErrInternal, err)
	}
	if err := os.WriteFile(m.statePath, data, 0o644); err != nil {
		return fmt.Errorf("%w: clear session state: %v", corterrors.ErrIO, err)
	}
	return nil
}
