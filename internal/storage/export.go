package storage

import (
	"context"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// SchemaVersion is the export envelope's version field (spec.md §6.3); it
// tracks the catalog schema version, not the binary's release version.
const SchemaVersion = 1

// Export is the full-catalog snapshot returned by cortex_export (spec.md
// §6.3): every memory, activity, session, link, and tag, plus any captured
// user messages.
type Export struct {
	Version      int                     `json:"version"`
	Memories     []cortexmodels.Memory   `json:"memories"`
	Activities   []cortexmodels.Activity `json:"activities"`
	Sessions     []cortexmodels.Session  `json:"sessions"`
	Links        []cortexmodels.Link     `json:"links"`
	Tags         []cortexmodels.Tag      `json:"tags"`
	UserMessages []cortexmodels.UserMessage `json:"user_messages"`
}

// BuildExport assembles the full catalog snapshot (spec.md §6.3). It reads
// every table directly rather than going through the paginated list APIs:
// export is an unbounded, single-shot operation by design.
func (e *Engine) BuildExport(ctx context.Context) (Export, error) {
	mems, err := e.listAllMemories(ctx)
	if err != nil {
		return Export{}, err
	}

	activities, err := e.allActivities(ctx)
	if err != nil {
		return Export{}, err
	}

	sessions, err := e.allSessions(ctx)
	if err != nil {
		return Export{}, err
	}

	links, err := e.allLinks(ctx)
	if err != nil {
		return Export{}, err
	}

	tags, err := e.ListTags(ctx)
	if err != nil {
		return Export{}, err
	}

	msgs, err := e.allUserMessages(ctx)
	if err != nil {
		return Export{}, err
	}

	return Export{
		Version:      SchemaVersion,
		Memories:     mems,
		Activities:   activities,
		Sessions:     sessions,
		Links:        links,
		Tags:         tags,
		UserMessages: msgs,
	}, nil
}

func (e *Engine) allActivities(ctx context.Context) ([]cortexmodels.Activity, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `
		SELECT id, session_id, event_type, tool_name, tool_input, tool_output, success, error_message,
			duration_ms, file_path, timestamp, command_name, command_scope, mcp_server, skill_name, summary, summary_detail
		FROM activities ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, wrapIO("list all activities", err)
	}
	defer rows.Close()

	var out []cortexmodels.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (e *Engine) allSessions(ctx context.Context) ([]cortexmodels.Session, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `SELECT id FROM sessions ORDER BY started_at ASC`)
	if err != nil {
		return nil, wrapIO("list all sessions", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapIO("scan session id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIO("iterate sessions", err)
	}

	out := make([]cortexmodels.Session, 0, len(ids))
	for _, id := range ids {
		s, err := loadSession(ctx, e.cat.DB, id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) allLinks(ctx context.Context) ([]cortexmodels.Link, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `SELECT from_id, to_id, kind FROM memory_links ORDER BY from_id ASC, to_id ASC, kind ASC`)
	if err != nil {
		return nil, wrapIO("list links", err)
	}
	defer rows.Close()

	var out []cortexmodels.Link
	for rows.Next() {
		var l cortexmodels.Link
		var kind string
		if err := rows.Scan(&l.FromID, &l.ToID, &kind); err != nil {
			return nil, wrapIO("scan link", err)
		}
		l.Kind = cortexmodels.LinkKind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (e *Engine) allUserMessages(ctx context.Context) ([]cortexmodels.UserMessage, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `
		SELECT id, session_id, content, word_count, char_count, line_count,
			has_code_blocks, has_questions, has_commands, tone_indicators, timestamp
		FROM user_messages ORDER BY timestamp ASC`)
	if err != nil {
		return nil, wrapIO("list user messages", err)
	}
	defer rows.Close()

	var out []cortexmodels.UserMessage
	for rows.Next() {
		var m cortexmodels.UserMessage
		var tones string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Content, &m.WordCount, &m.CharCount, &m.LineCount,
			&m.HasCodeBlocks, &m.HasQuestions, &m.HasCommands, &tones, &m.Timestamp); err != nil {
			return nil, wrapIO("scan user message", err)
		}
		m.ToneIndicators = decodeTones(tones)
		out = append(out, m)
	}
	return out, rows.Err()
}

func decodeTones(raw string) []cortexmodels.ToneIndicator {
	if raw == "" {
		return nil
	}
	var out []cortexmodels.ToneIndicator
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, cortexmodels.ToneIndicator(raw[start:i]))
			}
			start = i + 1
		}
	}
	return out
}
