package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/summarize"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// CaptureUserMessage records a human utterance with its derived surface
// features (spec.md §3.1). The style-analysis adapter that consumes these
// rows is external; the core only persists them and keeps the counts
// consistent with the content.
func (e *Engine) CaptureUserMessage(ctx context.Context, sessionID, content string) (cortexmodels.UserMessage, error) {
	if strings.TrimSpace(content) == "" {
		return cortexmodels.UserMessage{}, corterrors.Invalid("content", "content must not be empty")
	}

	profile := summarize.AnalyzeMessage(content)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()

	if _, err := e.cat.DB.ExecContext(ctx, `
		INSERT INTO user_messages (
			id, session_id, content, word_count, char_count, line_count,
			has_code_blocks, has_questions, has_commands, tone_indicators, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, content, profile.WordCount, profile.CharCount, profile.LineCount,
		profile.HasCodeBlocks, profile.HasQuestions, profile.HasCommands,
		encodeTones(profile.Tones), now,
	); err != nil {
		return cortexmodels.UserMessage{}, wrapIO("insert user message", err)
	}

	e.emit(cortexmodels.ChangeStatsUpdated, id, "")

	return cortexmodels.UserMessage{
		ID:             id,
		SessionID:      sessionID,
		Content:        content,
		WordCount:      profile.WordCount,
		CharCount:      profile.CharCount,
		LineCount:      profile.LineCount,
		HasCodeBlocks:  profile.HasCodeBlocks,
		HasQuestions:   profile.HasQuestions,
		HasCommands:    profile.HasCommands,
		ToneIndicators: profile.Tones,
		Timestamp:      now,
	}, nil
}

// GetUserMessages lists captured messages newest first, optionally scoped to
// one session.
func (e *Engine) GetUserMessages(ctx context.Context, sessionID *string, limit, offset int) ([]cortexmodels.UserMessage, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	q := `SELECT id, session_id, content, word_count, char_count, line_count,
		has_code_blocks, has_questions, has_commands, tone_indicators, timestamp
		FROM user_messages`
	var args []any
	if sessionID != nil {
		q += ` WHERE session_id = ?`
		args = append(args, *sessionID)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := e.cat.DB.QueryContext(ctx, q, args...)
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

func encodeTones(tones []cortexmodels.ToneIndicator) string {
	if len(tones) == 0 {
		return ""
	}
	parts := make([]string, len(tones))
	for i, t := range tones {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
