package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// --- Memory tools -----------------------------------------------------

type rememberParams struct {
	Content    string                  `json:"content"`
	Type       cortexmodels.MemoryType `json:"type"`
	Context    string                  `json:"context"`
	Tags       []string                `json:"tags"`
	Importance *int                    `json:"importance"`
	RelatedIDs []string                `json:"related_ids"`
}

func (d *Dispatcher) rememberHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[rememberParams](raw)
	if err != nil {
		return nil, err
	}
	mem, err := d.store.CreateMemory(ctx, storage.CreateMemoryInput{
		Content: p.Content, Type: p.Type, Context: p.Context, Tags: p.Tags,
		Importance: p.Importance, RelatedIDs: p.RelatedIDs,
	})
	if err != nil {
		return nil, err
	}
	return idResult{ID: mem.ID}, nil
}

type recallParams struct {
	Query   string                `json:"query"`
	Mode    cortexmodels.SearchMode `json:"mode"`
	Filters cortexmodels.Filters  `json:"filters"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

func (d *Dispatcher) recallHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[recallParams](raw)
	if err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, corterrors.Invalid("query", "query is required")
	}
	results, err := d.retrieve.Recall(ctx, p.Query, p.Mode, p.Filters, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	d.bookkeepAccess(ctx, results)
	return results, nil
}

type listMemoriesParams struct {
	Filters   cortexmodels.Filters `json:"filters"`
	SortBy    string               `json:"sort_by"`
	SortOrder string               `json:"sort_order"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}

func (d *Dispatcher) listMemoriesHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[listMemoriesParams](raw)
	if err != nil {
		return nil, err
	}
	mems, err := d.retrieve.ListMemories(ctx, p.Filters, p.SortBy, p.SortOrder, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(mems))
	for i, m := range mems {
		ids[i] = m.ID
	}
	if err := d.store.AccessMemories(ctx, ids); err != nil {
		d.logger.Warn("access bookkeeping failed", "error", err)
	}
	return mems, nil
}

type updateMemoryParams struct {
	ID    string                   `json:"id"`
	Patch storage.UpdateMemoryPatch `json:"patch"`
}

func (d *Dispatcher) updateMemoryHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[updateMemoryParams](raw)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, corterrors.Invalid("id", "id is required")
	}
	return d.store.UpdateMemory(ctx, p.ID, p.Patch, "")
}

type forgetParams struct {
	ID string `json:"id"`
}

func (d *Dispatcher) forgetHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[forgetParams](raw)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, corterrors.Invalid("id", "id is required")
	}
	n, err := d.store.ForgetMemory(ctx, p.ID, "")
	if err != nil {
		return nil, err
	}
	return map[string]int{"removed": n}, nil
}

type linkMemoriesParams struct {
	From string                 `json:"from"`
	To   string                 `json:"to"`
	Kind cortexmodels.LinkKind  `json:"kind"`
}

func (d *Dispatcher) linkMemoriesHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[linkMemoriesParams](raw)
	if err != nil {
		return nil, err
	}
	if p.From == "" {
		return nil, corterrors.Invalid("from", "from is required")
	}
	if p.To == "" {
		return nil, corterrors.Invalid("to", "to is required")
	}
	linked, err := d.store.LinkMemories(ctx, p.From, p.To, p.Kind, "")
	if err != nil {
		return nil, err
	}
	return map[string]bool{"linked": linked}, nil
}

func (d *Dispatcher) listTagsHandler(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.store.ListTags(ctx)
}

func (d *Dispatcher) reviewMemoriesHandler(ctx context.Context, _ json.RawMessage) (any, error) {
	reviewed, err := d.store.ReviewMemories(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(reviewed))
	for i, r := range reviewed {
		ids[i] = r.Memory.ID
	}
	links, err := d.store.OneHopLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	type reviewItem struct {
		Memory         cortexmodels.Memory     `json:"memory"`
		Classification cortexmodels.Freshness  `json:"classification"`
		Links          []cortexmodels.LinkRef  `json:"links,omitempty"`
	}
	out := make([]reviewItem, 0, len(reviewed))
	for _, r := range reviewed {
		out = append(out, reviewItem{Memory: r.Memory, Classification: r.Memory.Classification, Links: links[r.Memory.ID]})
	}
	return out, nil
}

type exportParams struct {
	Format string `json:"format"`
}

func (d *Dispatcher) exportHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[exportParams](raw)
	if err != nil {
		return nil, err
	}
	if p.Format == "" {
		p.Format = "json"
	}
	if p.Format != "json" && p.Format != "jsonl" {
		return nil, corterrors.Invalid("format", fmt.Sprintf("unknown export format %q", p.Format))
	}

	snapshot, err := d.store.BuildExport(ctx)
	if err != nil {
		return nil, err
	}
	if p.Format == "json" {
		return snapshot, nil
	}
	return jsonlRecords(snapshot), nil
}

// exportRecord is one envelope line of the jsonl export format (spec.md §6.3).
type exportRecord struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func jsonlRecords(snapshot storage.Export) []exportRecord {
	records := make([]exportRecord, 0, len(snapshot.Memories)+len(snapshot.Activities)+len(snapshot.Sessions)+len(snapshot.Links)+len(snapshot.Tags)+len(snapshot.UserMessages)+1)
	records = append(records, exportRecord{Kind: "version", Data: snapshot.Version})
	for _, m := range snapshot.Memories {
		records = append(records, exportRecord{Kind: "memory", Data: m})
	}
	for _, a := range snapshot.Activities {
		records = append(records, exportRecord{Kind: "activity", Data: a})
	}
	for _, s := range snapshot.Sessions {
		records = append(records, exportRecord{Kind: "session", Data: s})
	}
	for _, l := range snapshot.Links {
		records = append(records, exportRecord{Kind: "link", Data: l})
	}
	for _, t := range snapshot.Tags {
		records = append(records, exportRecord{Kind: "tag", Data: t})
	}
	for _, u := range snapshot.UserMessages {
		records = append(records, exportRecord{Kind: "user_message", Data: u})
	}
	return records
}

// --- Activity tools -----------------------------------------------------

type logActivityParams struct {
	EventType    cortexmodels.EventType     `json:"event_type"`
	ToolName     string                     `json:"tool_name"`
	ToolInput    string                     `json:"tool_input"`
	ToolOutput   string                     `json:"tool_output"`
	Success      bool                       `json:"success"`
	ErrorMessage string                     `json:"error_message"`
	DurationMS   *int64                     `json:"duration_ms"`
	FilePath     string                     `json:"file_path"`
	CommandName  string                     `json:"command_name"`
	CommandScope cortexmodels.CommandScope  `json:"command_scope"`
	MCPServer    string                     `json:"mcp_server"`
	SkillName    string                     `json:"skill_name"`
}

func (d *Dispatcher) logActivityHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[logActivityParams](raw)
	if err != nil {
		return nil, err
	}
	sessionID, err := d.sessions.AssignEvent(ctx, p.EventType)
	if err != nil {
		return nil, err
	}
	act, err := d.store.LogActivity(ctx, storage.LogActivityInput{
		SessionID: sessionID, EventType: p.EventType, ToolName: p.ToolName, ToolInput: p.ToolInput,
		ToolOutput: p.ToolOutput, Success: p.Success, ErrorMessage: p.ErrorMessage, DurationMS: p.DurationMS,
		FilePath: p.FilePath, CommandName: p.CommandName, CommandScope: p.CommandScope,
		MCPServer: p.MCPServer, SkillName: p.SkillName,
	})
	if err != nil {
		return nil, err
	}
	return idResult{ID: act.ID}, nil
}

type getActivitiesParams struct {
	Filters storage.ActivityFilters `json:"filters"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
}

func (d *Dispatcher) getActivitiesHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[getActivitiesParams](raw)
	if err != nil {
		return nil, err
	}
	return d.store.GetActivities(ctx, p.Filters, p.Limit, p.Offset)
}

type getTimelineParams struct {
	Hours int `json:"hours"`
}

func (d *Dispatcher) getTimelineHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[getTimelineParams](raw)
	if err != nil {
		return nil, err
	}
	activities, memories, err := d.store.GetTimeline(ctx, p.Hours)
	if err != nil {
		return nil, err
	}
	events := make([]timelineEvent, 0, len(activities)+len(memories))
	for _, a := range activities {
		events = append(events, timelineEvent{Kind: "activity", Timestamp: a.Timestamp, Data: a})
	}
	for _, m := range memories {
		events = append(events, timelineEvent{Kind: "memory", Timestamp: m.UpdatedAt, Data: m})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.After(events[j].Timestamp) })
	return events, nil
}

type timelineEvent struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// --- Session tools -----------------------------------------------------

type startSessionParams struct {
	ProjectPath string `json:"project_path"`
}

func (d *Dispatcher) startSessionHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[startSessionParams](raw)
	if err != nil {
		return nil, err
	}
	sess, err := d.sessions.StartExplicit(ctx, p.ProjectPath)
	if err != nil {
		return nil, err
	}
	return idResult{ID: sess.ID}, nil
}

func (d *Dispatcher) endSessionHandler(ctx context.Context, _ json.RawMessage) (any, error) {
	sess, err := d.sessions.EndExplicit(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": sess.ID, "summary": sess.Summary}, nil
}

func (d *Dispatcher) getSessionContextHandler(ctx context.Context, _ json.RawMessage) (any, error) {
	current, err := d.store.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	var sessionID *string
	if current != nil {
		sessionID = &current.ID
	}

	var activities any
	if sessionID != nil {
		acts, err := d.store.GetActivities(ctx, storage.ActivityFilters{SessionID: sessionID}, 20, 0)
		if err != nil {
			return nil, err
		}
		activities = acts
	}

	memories, err := d.retrieve.ListMemories(ctx, cortexmodels.Filters{}, "last_accessed", "desc", 10, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	links, err := d.store.OneHopLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	type memoryWithLinks struct {
		cortexmodels.Memory
		Links []cortexmodels.LinkRef `json:"links,omitempty"`
	}
	recent := make([]memoryWithLinks, len(memories))
	for i, m := range memories {
		recent[i] = memoryWithLinks{Memory: m, Links: links[m.ID]}
	}

	return map[string]any{
		"current_session":   current,
		"recent_activities":  activities,
		"recent_memories":    recent,
	}, nil
}

// bookkeepAccess issues the batched access-bookkeeping update for every
// memory returned by a recall (spec.md §4.2).
func (d *Dispatcher) bookkeepAccess(ctx context.Context, results []cortexmodels.ScoredMemory) {
	if len(results) == 0 {
		return
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	if err := d.store.AccessMemories(ctx, ids); err != nil {
		d.logger.Warn("access bookkeeping failed", "error", err)
	}
}
