package storage

import (
	"context"
	"fmt"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// ImportMode selects how Import treats the access/recency bookkeeping on
// incoming memories (spec.md §8's export/import round-trip law, generalized
// per SPEC_FULL.md §D.3: a restore of a prior snapshot should read back
// byte-for-byte, while seeding a fresh catalog from another project's
// export should not carry over access statistics that describe a different
// catalog's read history).
type ImportMode string

const (
	// ImportRestore preserves every field of Export verbatim, including
	// access_count and last_accessed: round-tripping cortex_export's output
	// back into an empty catalog reproduces the original state exactly.
	ImportRestore ImportMode = "restore"

	// ImportFresh resets access_count to 0 and last_accessed to nil on every
	// imported memory, as if newly created in this catalog.
	ImportFresh ImportMode = "fresh"
)

// Import loads a full Export snapshot into the catalog this Engine wraps.
// The catalog must be empty of memories: Import is a seed operation, not a
// merge (callers wanting a merge export to a new catalog and re-ingest
// selectively via CreateMemory instead). Every insert runs inside one
// transaction so a failure partway through leaves the catalog untouched.
func (e *Engine) Import(ctx context.Context, snapshot Export, mode ImportMode) (int, error) {
	if mode != ImportRestore && mode != ImportFresh {
		return 0, corterrors.Invalid("mode", "mode must be \"restore\" or \"fresh\"")
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var existing int
	if err := e.cat.DB.QueryRowContext(ctx, `SELECT count(*) FROM memories`).Scan(&existing); err != nil {
		return 0, wrapIO("check catalog is empty", err)
	}
	if existing > 0 {
		return 0, fmt.Errorf("%w: catalog already has %d memories, import requires an empty catalog", corterrors.ErrConflict, existing)
	}

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	for _, m := range snapshot.Memories {
		accessCount := m.AccessCount
		var lastAccessed any
		if mode == ImportRestore {
			if m.LastAccessed != nil {
				lastAccessed = *m.LastAccessed
			}
		} else {
			accessCount = 0
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memories (id, content, context, memory_type, status, importance_score, access_count, created_at, updated_at, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Content, m.Context, string(m.MemoryType), string(m.Status), m.ImportanceScore,
			accessCount, m.CreatedAt, m.UpdatedAt, lastAccessed,
		); err != nil {
			return 0, wrapIO("insert imported memory", err)
		}
		for _, tag := range dedupeTags(m.Tags) {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, m.ID, tag); err != nil {
				return 0, wrapIO("insert imported tag", err)
			}
		}
		if len(m.Embedding) > 0 {
			if err := storeVector(ctx, tx, m.ID, m.Embedding); err != nil {
				return 0, wrapIO("store imported vector", err)
			}
		}
	}

	for _, l := range snapshot.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO memory_links (from_id, to_id, kind) VALUES (?, ?, ?)`,
			l.FromID, l.ToID, string(l.Kind),
		); err != nil {
			return 0, wrapIO("insert imported link", err)
		}
	}

	for _, s := range snapshot.Sessions {
		var endedAt any
		if s.EndedAt != nil {
			endedAt = *s.EndedAt
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, project_path, started_at, ended_at, summary, activity_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, s.ProjectPath, s.StartedAt, endedAt, s.Summary, s.ActivityCount,
		); err != nil {
			return 0, wrapIO("insert imported session", err)
		}
	}

	for _, a := range snapshot.Activities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activities (
				id, session_id, event_type, tool_name, tool_input, tool_output, success, error_message,
				duration_ms, file_path, timestamp, command_name, command_scope, mcp_server, skill_name,
				summary, summary_detail
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.SessionID, string(a.EventType), a.ToolName, a.ToolInput, a.ToolOutput, a.Success, a.ErrorMessage,
			a.DurationMS, a.FilePath, a.Timestamp, a.CommandName, string(a.CommandScope), a.MCPServer, a.SkillName,
			a.Summary, a.SummaryDetail,
		); err != nil {
			return 0, wrapIO("insert imported activity", err)
		}
	}

	for _, u := range snapshot.UserMessages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_messages (
				id, session_id, content, word_count, char_count, line_count,
				has_code_blocks, has_questions, has_commands, tone_indicators, timestamp
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.SessionID, u.Content, u.WordCount, u.CharCount, u.LineCount,
			u.HasCodeBlocks, u.HasQuestions, u.HasCommands, encodeTones(u.ToneIndicators), u.Timestamp,
		); err != nil {
			return 0, wrapIO("insert imported user message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapIO("commit import", err)
	}

	e.emit(cortexmodels.ChangeDatabaseChanged, "", "")
	return len(snapshot.Memories), nil
}
