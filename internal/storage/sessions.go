package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// StartSession opens a new session row. At most one session per catalog may
// have ended_at IS NULL (spec.md §8); callers (internal/session) are
// responsible for ending any current session first.
func (e *Engine) StartSession(ctx context.Context, projectPath string) (cortexmodels.Session, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()
	if _, err := e.cat.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, project_path, started_at, ended_at, summary, activity_count)
		VALUES (?, ?, ?, NULL, '', 0)`, id, projectPath, now,
	); err != nil {
		return cortexmodels.Session{}, wrapIO("insert session", err)
	}

	e.emit(cortexmodels.ChangeSessionUpdated, id, projectPath)
	return cortexmodels.Session{ID: id, ProjectPath: projectPath, StartedAt: now}, nil
}

// EndSession closes a session: ended_at=now, summary derived from the
// session's activity summaries (spec.md §4.6).
func (e *Engine) EndSession(ctx context.Context, id string) (cortexmodels.Session, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return cortexmodels.Session{}, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	sess, err := loadSession(ctx, tx, id)
	if err != nil {
		return cortexmodels.Session{}, err
	}
	if sess.EndedAt != nil {
		return sess, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT summary FROM activities WHERE session_id = ? ORDER BY timestamp ASC`, id)
	if err != nil {
		return cortexmodels.Session{}, wrapIO("load activity summaries", err)
	}
	var briefs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return cortexmodels.Session{}, wrapIO("scan activity summary", err)
		}
		if s != "" {
			briefs = append(briefs, s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cortexmodels.Session{}, wrapIO("iterate activity summaries", err)
	}

	summary := deriveSessionSummary(briefs)
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET ended_at = ?, summary = ? WHERE id = ?`, now, summary, id); err != nil {
		return cortexmodels.Session{}, wrapIO("update session", err)
	}
	if err := tx.Commit(); err != nil {
		return cortexmodels.Session{}, wrapIO("commit end session", err)
	}

	sess.EndedAt = &now
	sess.Summary = summary
	e.emit(cortexmodels.ChangeSessionUpdated, id, sess.ProjectPath)
	return sess, nil
}

// CurrentSession returns the catalog's session with ended_at IS NULL, if any.
func (e *Engine) CurrentSession(ctx context.Context) (*cortexmodels.Session, error) {
	row := e.cat.DB.QueryRowContext(ctx, `SELECT id FROM sessions WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapIO("load current session", err)
	}
	sess, err := loadSession(ctx, e.cat.DB, id)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession loads a session by id.
func (e *Engine) GetSession(ctx context.Context, id string) (cortexmodels.Session, error) {
	return loadSession(ctx, e.cat.DB, id)
}

func loadSession(ctx context.Context, q queryer, id string) (cortexmodels.Session, error) {
	var s cortexmodels.Session
	var endedAt sql.NullTime
	row := q.QueryRowContext(ctx, `
		SELECT id, project_path, started_at, ended_at, summary, activity_count
		FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&s.ID, &s.ProjectPath, &s.StartedAt, &endedAt, &s.Summary, &s.ActivityCount); err != nil {
		if err == sql.ErrNoRows {
			return cortexmodels.Session{}, fmt.Errorf("%w: session %q", corterrors.ErrNotFound, id)
		}
		return cortexmodels.Session{}, wrapIO("load session", err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

// deriveSessionSummary joins activity brief summaries into one session
// summary, capped to keep it skimmable.
func deriveSessionSummary(briefs []string) string {
	if len(briefs) == 0 {
		return "no activity"
	}
	const maxItems = 8
	if len(briefs) > maxItems {
		briefs = briefs[len(briefs)-maxItems:]
	}
	return strings.Join(briefs, "; ")
}
