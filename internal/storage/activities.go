package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/redact"
	"github.com/omnicortex/omnicortex/internal/summarize"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// LogActivityInput is the validated input to LogActivity.
type LogActivityInput struct {
	SessionID    string
	EventType    cortexmodels.EventType
	ToolName     string
	ToolInput    string
	ToolOutput   string
	Success      bool
	ErrorMessage string
	DurationMS   *int64
	FilePath     string
	CommandName  string
	CommandScope cortexmodels.CommandScope
	MCPServer    string
	SkillName    string
}

// LogActivity redacts secrets out of tool_input/tool_output, derives a
// brief/detail summary, and persists the activity (spec.md §4.5). Redaction
// failure is ErrInternal and the activity is not written (§7).
func (e *Engine) LogActivity(ctx context.Context, in LogActivityInput) (cortexmodels.Activity, error) {
	if !cortexmodels.ValidEventType(in.EventType) {
		return cortexmodels.Activity{}, corterrors.Invalid("event_type", fmt.Sprintf("unknown event type %q", in.EventType))
	}
	if in.SessionID == "" {
		return cortexmodels.Activity{}, corterrors.Invalid("session_id", "session_id is required")
	}

	redactedInput, err := redact.JSON(in.ToolInput)
	if err != nil {
		return cortexmodels.Activity{}, fmt.Errorf("%w: redact tool_input: %v", corterrors.ErrInternal, err)
	}
	redactedOutput, err := redact.JSON(in.ToolOutput)
	if err != nil {
		return cortexmodels.Activity{}, fmt.Errorf("%w: redact tool_output: %v", corterrors.ErrInternal, err)
	}

	result := summarize.Summarize(in.ToolName, redactedInput, in.Success, in.ErrorMessage)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return cortexmodels.Activity{}, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	var sessionExists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, in.SessionID).Scan(&sessionExists); err != nil {
		if err == sql.ErrNoRows {
			return cortexmodels.Activity{}, fmt.Errorf("%w: session %q does not exist", corterrors.ErrNotFound, in.SessionID)
		}
		return cortexmodels.Activity{}, wrapIO("check session exists", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activities (
			id, session_id, event_type, tool_name, tool_input, tool_output, success, error_message,
			duration_ms, file_path, timestamp, command_name, command_scope, mcp_server, skill_name,
			summary, summary_detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.SessionID, string(in.EventType), in.ToolName, redactedInput, redactedOutput, in.Success, in.ErrorMessage,
		in.DurationMS, in.FilePath, now, in.CommandName, string(in.CommandScope), in.MCPServer, in.SkillName,
		result.Brief, result.Detail,
	); err != nil {
		return cortexmodels.Activity{}, wrapIO("insert activity", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET activity_count = activity_count + 1 WHERE id = ?`, in.SessionID); err != nil {
		return cortexmodels.Activity{}, wrapIO("increment session activity_count", err)
	}

	if err := tx.Commit(); err != nil {
		return cortexmodels.Activity{}, wrapIO("commit log activity", err)
	}

	e.emit(cortexmodels.ChangeActivityLogged, id, "")

	return cortexmodels.Activity{
		ID:            id,
		SessionID:     in.SessionID,
		EventType:     in.EventType,
		ToolName:      in.ToolName,
		ToolInput:     redactedInput,
		ToolOutput:    redactedOutput,
		Success:       in.Success,
		ErrorMessage:  in.ErrorMessage,
		DurationMS:    in.DurationMS,
		FilePath:      in.FilePath,
		Timestamp:     now,
		CommandName:   in.CommandName,
		CommandScope:  in.CommandScope,
		MCPServer:     in.MCPServer,
		SkillName:     in.SkillName,
		Summary:       result.Brief,
		SummaryDetail: result.Detail,
	}, nil
}

// ActivityFilters constrains GetActivities.
type ActivityFilters struct {
	SessionID *string    `json:"session_id,omitempty"`
	ToolName  *string    `json:"tool_name,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
}

// GetActivities lists activities matching filters, newest first.
func (e *Engine) GetActivities(ctx context.Context, filters ActivityFilters, limit, offset int) ([]cortexmodels.Activity, error) {
	limit = clampLimit(limit)

	q := `SELECT id, session_id, event_type, tool_name, tool_input, tool_output, success, error_message,
		duration_ms, file_path, timestamp, command_name, command_scope, mcp_server, skill_name, summary, summary_detail
		FROM activities WHERE 1=1`
	var args []any
	if filters.SessionID != nil {
		q += ` AND session_id = ?`
		args = append(args, *filters.SessionID)
	}
	if filters.ToolName != nil {
		q += ` AND tool_name = ?`
		args = append(args, *filters.ToolName)
	}
	if filters.Since != nil {
		q += ` AND timestamp >= ?`
		args = append(args, *filters.Since)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := e.cat.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapIO("list activities", err)
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

// GetTimeline returns the activities logged and the memories updated within
// the last `hours` hours as two lists, each newest first (spec.md §6.1). The
// cortex_get_timeline handler merges them into one reverse chronological
// sequence.
func (e *Engine) GetTimeline(ctx context.Context, hours int) ([]cortexmodels.Activity, []cortexmodels.Memory, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	activities, err := e.GetActivities(ctx, ActivityFilters{Since: &since}, 200, 0)
	if err != nil {
		return nil, nil, err
	}

	rows, err := e.cat.DB.QueryContext(ctx, `SELECT id FROM memories WHERE updated_at >= ? ORDER BY updated_at DESC LIMIT 200`, since)
	if err != nil {
		return nil, nil, wrapIO("list recent memories", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, wrapIO("scan memory id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, wrapIO("iterate recent memories", err)
	}

	mems := make([]cortexmodels.Memory, 0, len(ids))
	for _, id := range ids {
		m, err := loadMemory(ctx, e.cat.DB, id)
		if err != nil {
			return nil, nil, err
		}
		mems = append(mems, m)
	}

	return activities, mems, nil
}

func scanActivity(rows *sql.Rows) (cortexmodels.Activity, error) {
	var a cortexmodels.Activity
	var eventType, scope string
	if err := rows.Scan(
		&a.ID, &a.SessionID, &eventType, &a.ToolName, &a.ToolInput, &a.ToolOutput, &a.Success, &a.ErrorMessage,
		&a.DurationMS, &a.FilePath, &a.Timestamp, &a.CommandName, &scope, &a.MCPServer, &a.SkillName, &a.Summary, &a.SummaryDetail,
	); err != nil {
		return cortexmodels.Activity{}, wrapIO("scan activity", err)
	}
	a.EventType = cortexmodels.EventType(eventType)
	a.CommandScope = cortexmodels.CommandScope(scope)
	return a, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 200 {
		return 200
	}
	return limit
}
