// Package cortexmodels defines the entities persisted by the Omni-Cortex
// catalog: memories, activities, sessions, links, tags, and user messages.
package cortexmodels

import "time"

// MemoryType enumerates the kinds of durable knowledge a memory can record.
type MemoryType string

const (
	MemoryTypeDecision     MemoryType = "decision"
	MemoryTypeSolution     MemoryType = "solution"
	MemoryTypeInsight      MemoryType = "insight"
	MemoryTypeError        MemoryType = "error"
	MemoryTypeContext      MemoryType = "context"
	MemoryTypePreference   MemoryType = "preference"
	MemoryTypeTodo         MemoryType = "todo"
	MemoryTypeReference    MemoryType = "reference"
	MemoryTypeWorkflow     MemoryType = "workflow"
	MemoryTypeAPI          MemoryType = "api"
	MemoryTypeConversation MemoryType = "conversation"
	MemoryTypeOther        MemoryType = "other"
)

// ValidMemoryType reports whether t is one of the enumerated memory types.
func ValidMemoryType(t MemoryType) bool {
	switch t {
	case MemoryTypeDecision, MemoryTypeSolution, MemoryTypeInsight, MemoryTypeError,
		MemoryTypeContext, MemoryTypePreference, MemoryTypeTodo, MemoryTypeReference,
		MemoryTypeWorkflow, MemoryTypeAPI, MemoryTypeConversation, MemoryTypeOther:
		return true
	}
	return false
}

// MemoryStatus enumerates the lifecycle states of a memory.
type MemoryStatus string

const (
	StatusFresh       MemoryStatus = "fresh"
	StatusNeedsReview MemoryStatus = "needs_review"
	StatusOutdated    MemoryStatus = "outdated"
	StatusArchived    MemoryStatus = "archived"
)

// ValidMemoryStatus reports whether s is one of the enumerated statuses.
func ValidMemoryStatus(s MemoryStatus) bool {
	switch s {
	case StatusFresh, StatusNeedsReview, StatusOutdated, StatusArchived:
		return true
	}
	return false
}

// Memory is a durable unit of knowledge (spec.md §3.1).
type Memory struct {
	ID              string       `json:"id"`
	Content         string       `json:"content"`
	Context         string       `json:"context,omitempty"`
	MemoryType      MemoryType   `json:"memory_type"`
	Status          MemoryStatus `json:"status"`
	ImportanceScore int          `json:"importance_score"`
	AccessCount     int          `json:"access_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	LastAccessed    *time.Time   `json:"last_accessed,omitempty"`
	Tags            []string     `json:"tags"`
	Embedding       []float32    `json:"embedding,omitempty"`

	// Classification is a derived, not-persisted field computed by the
	// retrieval engine at read time (§4.4).
	Classification Freshness `json:"classification,omitempty"`
}

// Freshness is the derived classification of a memory from last_accessed and status.
type Freshness string

const (
	FreshnessFresh       Freshness = "fresh"
	FreshnessNeedsReview Freshness = "needs_review"
	FreshnessOutdated    Freshness = "outdated"
	FreshnessArchived    Freshness = "archived"
)

// EventType enumerates hook events that produce activities.
type EventType string

const (
	EventPreToolUse   EventType = "pre_tool_use"
	EventPostToolUse  EventType = "post_tool_use"
	EventStop         EventType = "stop"
	EventSubagentStop EventType = "subagent_stop"
)

// ValidEventType reports whether e is a recognized hook event type.
func ValidEventType(e EventType) bool {
	switch e {
	case EventPreToolUse, EventPostToolUse, EventStop, EventSubagentStop:
		return true
	}
	return false
}

// CommandScope classifies the scope of a slash-command style tool call.
type CommandScope string

const (
	CommandScopeUniversal CommandScope = "universal"
	CommandScopeProject   CommandScope = "project"
	CommandScopeUnknown   CommandScope = "unknown"
)

// Activity is an observation of a tool call made by the host assistant (§3.1).
type Activity struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`

	EventType    EventType `json:"event_type"`
	ToolName     string    `json:"tool_name,omitempty"`
	ToolInput    string    `json:"tool_input,omitempty"`
	ToolOutput   string    `json:"tool_output,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   *int64    `json:"duration_ms,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	CommandName  string       `json:"command_name,omitempty"`
	CommandScope CommandScope `json:"command_scope,omitempty"`
	MCPServer    string       `json:"mcp_server,omitempty"`
	SkillName    string       `json:"skill_name,omitempty"`

	Summary       string `json:"summary,omitempty"`
	SummaryDetail string `json:"summary_detail,omitempty"`
}

// Session is a contiguous stretch of activity (§3.1).
type Session struct {
	ID            string     `json:"id"`
	ProjectPath   string     `json:"project_path,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	ActivityCount int        `json:"activity_count"`
}

// LinkKind enumerates directed relationship types between memories.
type LinkKind string

const (
	LinkRelatesTo   LinkKind = "relates_to"
	LinkSupersedes  LinkKind = "supersedes"
	LinkContradicts LinkKind = "contradicts"
	LinkDependsOn   LinkKind = "depends_on"
	LinkCausedBy    LinkKind = "caused_by"
	LinkOther       LinkKind = "other"
)

// ValidLinkKind reports whether k is a recognized link kind.
func ValidLinkKind(k LinkKind) bool {
	switch k {
	case LinkRelatesTo, LinkSupersedes, LinkContradicts, LinkDependsOn, LinkCausedBy, LinkOther:
		return true
	}
	return false
}

// Link is a directed, typed relationship between two memories (§3.1).
type Link struct {
	FromID string   `json:"from_id"`
	ToID   string   `json:"to_id"`
	Kind   LinkKind `json:"kind"`
}

// LinkRef is the one-hop view of an outgoing link, as surfaced by review
// and session-context reads. Those reads never traverse further;
// MoreAvailable reports that the target memory has outgoing links of its
// own, so a caller wanting the next hop must ask for it explicitly.
type LinkRef struct {
	ToID          string   `json:"to_id"`
	Kind          LinkKind `json:"kind"`
	MoreAvailable bool     `json:"more_available,omitempty"`
}

// Tag is an aggregated tag count, as returned by cortex_list_tags.
type Tag struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ToneIndicator enumerates tone markers detected in a captured user message.
type ToneIndicator string

const (
	ToneUrgent      ToneIndicator = "urgent"
	TonePolite      ToneIndicator = "polite"
	ToneDirect      ToneIndicator = "direct"
	ToneInquisitive ToneIndicator = "inquisitive"
	ToneTechnical   ToneIndicator = "technical"
	ToneCasual      ToneIndicator = "casual"
)

// UserMessage is a captured human utterance used by the style-analysis adapter (§3.1).
type UserMessage struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id,omitempty"`
	Content        string          `json:"content"`
	WordCount      int             `json:"word_count"`
	CharCount      int             `json:"char_count"`
	LineCount      int             `json:"line_count"`
	HasCodeBlocks  bool            `json:"has_code_blocks"`
	HasQuestions   bool            `json:"has_questions"`
	HasCommands    bool            `json:"has_commands"`
	ToneIndicators []ToneIndicator `json:"tone_indicators,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// SearchMode selects the retrieval strategy for cortex_recall.
type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
	SearchHybrid   SearchMode = "hybrid"
)

// Filters constrains candidate memories before ranking (§4.4).
type Filters struct {
	MemoryType         *MemoryType    `json:"memory_type,omitempty"`
	Status             []MemoryStatus `json:"status,omitempty"`
	Tags               []string       `json:"tags,omitempty"`
	MinImportance      *int           `json:"min_importance,omitempty"`
	MaxImportance      *int           `json:"max_importance,omitempty"`
	LastAccessedAfter  *time.Time     `json:"last_accessed_after,omitempty"`
	LastAccessedBefore *time.Time     `json:"last_accessed_before,omitempty"`
}

// ScoredMemory pairs a memory with its retrieval score.
type ScoredMemory struct {
	Memory   Memory  `json:"memory"`
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded,omitempty"` // true when semantic mode fell back to keyword mode
}

// ChangeKind enumerates the change-broadcast event kinds (§4.7).
type ChangeKind string

const (
	ChangeMemoryCreated   ChangeKind = "memory_created"
	ChangeMemoryUpdated   ChangeKind = "memory_updated"
	ChangeMemoryDeleted   ChangeKind = "memory_deleted"
	ChangeActivityLogged  ChangeKind = "activity_logged"
	ChangeSessionUpdated  ChangeKind = "session_updated"
	ChangeStatsUpdated    ChangeKind = "stats_updated"
	ChangeDatabaseChanged ChangeKind = "database_changed"
)

// ChangeEvent is a best-effort change notification delivered to subscribers.
type ChangeEvent struct {
	Kind         ChangeKind `json:"kind"`
	EntityID     string     `json:"entity_id,omitempty"`
	ProjectPath  string     `json:"project_path,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	DroppedCount int        `json:"dropped_count,omitempty"`
}
