// Package storage implements the storage engine (spec.md §4.2): typed CRUD
// over a catalog.Catalog, coordinating the embedder, redactor, summarizer,
// and change broadcaster. Every write runs inside a single transaction; every
// multi-table read uses one connection so tag lists and links cannot tear.
// Grounded on the Manager/Backend coordination style of the teacher's
// internal/memory.Manager, generalized from a vector-search-only manager to
// full CRUD over memories, activities, sessions, links, and tags.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// Engine is the storage engine for a single catalog (spec.md §4.2).
type Engine struct {
	cat      *catalog.Catalog
	embedder embedding.Embedder
	bus      *broadcast.Broadcaster
	logger   *slog.Logger

	// writeMu serializes writes to this catalog (§4.8, §5): one writer at a
	// time, reads proceed concurrently via the catalog's own connection.
	writeMu sync.Mutex
}

// New creates a storage engine over an already-opened catalog.
func New(cat *catalog.Catalog, embedder embedding.Embedder, bus *broadcast.Broadcaster, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = broadcast.New(0, logger)
	}
	return &Engine{
		cat:      cat,
		embedder: embedder,
		bus:      bus,
		logger:   logger.With("component", "storage"),
	}
}

// ProjectPath is attached to emitted ChangeEvents; it is the catalog's owning
// project directory (or "" for the global aggregate catalog).
func (e *Engine) emit(kind cortexmodels.ChangeKind, entityID, projectPath string) {
	e.bus.Publish(cortexmodels.ChangeEvent{
		Kind:        kind,
		EntityID:    entityID,
		ProjectPath: projectPath,
		Timestamp:   time.Now().UTC(),
	})
	if err := e.cat.Touch(); err != nil {
		e.logger.Warn("touch catalog after write failed", "error", err)
	}
}

// CreateMemoryInput is the validated input to CreateMemory.
type CreateMemoryInput struct {
	Content         string
	Type            cortexmodels.MemoryType
	Context         string
	Tags            []string
	Importance      *int
	RelatedIDs      []string
	ProjectPath     string
}

// CreateMemory inserts a new memory, its tags, relates-to links, and derived
// vector, all inside one transaction (spec.md §4.2).
func (e *Engine) CreateMemory(ctx context.Context, in CreateMemoryInput) (cortexmodels.Memory, error) {
	if in.Content == "" {
		return cortexmodels.Memory{}, corterrors.Invalid("content", "content must not be empty")
	}
	importance := 50
	if in.Importance != nil {
		importance = *in.Importance
	}
	if importance < 0 || importance > 100 {
		return cortexmodels.Memory{}, corterrors.Invalid("importance", "importance must be between 0 and 100")
	}
	memType := in.Type
	if memType == "" {
		memType = cortexmodels.MemoryTypeOther
	}
	if !cortexmodels.ValidMemoryType(memType) {
		return cortexmodels.Memory{}, corterrors.Invalid("type", fmt.Sprintf("unknown memory type %q", memType))
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return cortexmodels.Memory{}, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	for _, relID := range in.RelatedIDs {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, relID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return cortexmodels.Memory{}, fmt.Errorf("%w: related_id %q does not exist", corterrors.ErrNotFound, relID)
			}
			return cortexmodels.Memory{}, wrapIO("check related_id", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memories (id, content, context, memory_type, status, importance_score, access_count, created_at, updated_at, last_accessed)
		VALUES (?, ?, ?, ?, 'fresh', ?, 0, ?, ?, NULL)`,
		id, in.Content, in.Context, string(memType), importance, now, now,
	); err != nil {
		return cortexmodels.Memory{}, wrapIO("insert memory", err)
	}

	for _, tag := range dedupeTags(in.Tags) {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, id, tag); err != nil {
			return cortexmodels.Memory{}, wrapIO("insert tag", err)
		}
	}

	for _, relID := range in.RelatedIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO memory_links (from_id, to_id, kind) VALUES (?, ?, ?)`,
			id, relID, string(cortexmodels.LinkRelatesTo),
		); err != nil {
			return cortexmodels.Memory{}, wrapIO("insert link", err)
		}
	}

	vecText := in.Content + " " + in.Context
	var vector []float32
	if e.embedder != nil && e.embedder.IsAvailable() {
		vecs, err := e.embedder.Embed(ctx, []string{vecText})
		if err != nil {
			e.logger.Warn("embed on write failed, storing no-vector", "memory_id", id, "error", err)
		} else if len(vecs) == 1 {
			vector = vecs[0]
		}
	}
	if vector != nil {
		if err := storeVector(ctx, tx, id, vector); err != nil {
			return cortexmodels.Memory{}, wrapIO("store vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cortexmodels.Memory{}, wrapIO("commit create memory", err)
	}

	e.emit(cortexmodels.ChangeMemoryCreated, id, in.ProjectPath)

	return cortexmodels.Memory{
		ID:              id,
		Content:         in.Content,
		Context:         in.Context,
		MemoryType:      memType,
		Status:          cortexmodels.StatusFresh,
		ImportanceScore: importance,
		CreatedAt:       now,
		UpdatedAt:       now,
		Tags:            dedupeTags(in.Tags),
		Embedding:       vector,
	}, nil
}

// UpdateMemoryPatch carries only the fields the caller supplied.
type UpdateMemoryPatch struct {
	Content         *string                   `json:"content,omitempty"`
	Context         *string                   `json:"context,omitempty"`
	MemoryType      *cortexmodels.MemoryType  `json:"memory_type,omitempty"`
	Status          *cortexmodels.MemoryStatus `json:"status,omitempty"`
	ImportanceScore *int                      `json:"importance_score,omitempty"`
	Tags            *[]string                 `json:"tags,omitempty"`
}

// UpdateMemory applies patch to the memory, re-embedding if content changed.
func (e *Engine) UpdateMemory(ctx context.Context, id string, patch UpdateMemoryPatch, projectPath string) (cortexmodels.Memory, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return cortexmodels.Memory{}, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	mem, err := loadMemory(ctx, tx, id)
	if err != nil {
		return cortexmodels.Memory{}, err
	}

	contentChanged := false
	if patch.Content != nil && *patch.Content != mem.Content {
		if *patch.Content == "" {
			return cortexmodels.Memory{}, corterrors.Invalid("content", "content must not be empty")
		}
		mem.Content = *patch.Content
		contentChanged = true
	}
	if patch.Context != nil && *patch.Context != mem.Context {
		mem.Context = *patch.Context
		contentChanged = true
	}
	if patch.MemoryType != nil {
		if !cortexmodels.ValidMemoryType(*patch.MemoryType) {
			return cortexmodels.Memory{}, corterrors.Invalid("type", fmt.Sprintf("unknown memory type %q", *patch.MemoryType))
		}
		mem.MemoryType = *patch.MemoryType
	}
	if patch.Status != nil {
		if !cortexmodels.ValidMemoryStatus(*patch.Status) {
			return cortexmodels.Memory{}, corterrors.Invalid("status", fmt.Sprintf("unknown status %q", *patch.Status))
		}
		mem.Status = *patch.Status
	}
	if patch.ImportanceScore != nil {
		if *patch.ImportanceScore < 0 || *patch.ImportanceScore > 100 {
			return cortexmodels.Memory{}, corterrors.Invalid("importance_score", "importance must be between 0 and 100")
		}
		mem.ImportanceScore = *patch.ImportanceScore
	}

	now := time.Now().UTC()
	if now.Before(mem.CreatedAt) {
		return cortexmodels.Memory{}, fmt.Errorf("%w: updated_at cannot precede created_at", corterrors.ErrConflict)
	}
	mem.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE memories SET content = ?, context = ?, memory_type = ?, status = ?, importance_score = ?, updated_at = ?
		WHERE id = ?`,
		mem.Content, mem.Context, string(mem.MemoryType), string(mem.Status), mem.ImportanceScore, mem.UpdatedAt, id,
	); err != nil {
		return cortexmodels.Memory{}, wrapIO("update memory", err)
	}

	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, id); err != nil {
			return cortexmodels.Memory{}, wrapIO("clear tags", err)
		}
		for _, tag := range dedupeTags(*patch.Tags) {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, id, tag); err != nil {
				return cortexmodels.Memory{}, wrapIO("insert tag", err)
			}
		}
		mem.Tags = dedupeTags(*patch.Tags)
	}

	if contentChanged && e.embedder != nil && e.embedder.IsAvailable() {
		vecs, err := e.embedder.Embed(ctx, []string{mem.Content + " " + mem.Context})
		if err != nil {
			e.logger.Warn("re-embed on update failed, leaving prior vector", "memory_id", id, "error", err)
		} else if len(vecs) == 1 {
			if err := storeVector(ctx, tx, id, vecs[0]); err != nil {
				return cortexmodels.Memory{}, wrapIO("store vector", err)
			}
			mem.Embedding = vecs[0]
		}
	}

	if err := tx.Commit(); err != nil {
		return cortexmodels.Memory{}, wrapIO("commit update memory", err)
	}

	e.emit(cortexmodels.ChangeMemoryUpdated, id, projectPath)
	return mem, nil
}

// ForgetMemory hard-deletes a memory and cascades to tags, links, FTS, and
// vector rows. Returns the number of rows removed (0 or 1).
func (e *Engine) ForgetMemory(ctx context.Context, id string, projectPath string) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, wrapIO("check memory exists", err)
	}

	// Children are deleted before the parent row: foreign_keys=ON rejects a
	// parent delete while referencing rows still exist.
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, id); err != nil {
		return 0, wrapIO("delete tags", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_links WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return 0, wrapIO("delete links", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors WHERE memory_id = ?`, id); err != nil {
		return 0, wrapIO("delete vector", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return 0, wrapIO("delete memory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapIO("rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapIO("commit forget memory", err)
	}

	e.emit(cortexmodels.ChangeMemoryDeleted, id, projectPath)
	return int(n), nil
}

// LinkMemories inserts a directed link; a duplicate (from,to,kind) is a no-op
// success.
func (e *Engine) LinkMemories(ctx context.Context, from, to string, kind cortexmodels.LinkKind, projectPath string) (bool, error) {
	if from == to {
		return false, corterrors.Invalid("to", "a memory cannot link to itself")
	}
	if kind == "" {
		kind = cortexmodels.LinkRelatesTo
	}
	if !cortexmodels.ValidLinkKind(kind) {
		return false, corterrors.Invalid("kind", fmt.Sprintf("unknown link kind %q", kind))
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.cat.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapIO("begin transaction", err)
	}
	defer tx.Rollback()

	for _, id := range []string{from, to} {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return false, fmt.Errorf("%w: memory %q does not exist", corterrors.ErrNotFound, id)
			}
			return false, wrapIO("check memory exists", err)
		}
	}

	var already int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM memory_links WHERE from_id = ? AND to_id = ? AND kind = ?`, from, to, string(kind)).Scan(&already)
	if err != nil && err != sql.ErrNoRows {
		return false, wrapIO("check existing link", err)
	}
	if already == 1 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_links (from_id, to_id, kind) VALUES (?, ?, ?)`, from, to, string(kind)); err != nil {
		return false, wrapIO("insert link", err)
	}
	if err := tx.Commit(); err != nil {
		return false, wrapIO("commit link memories", err)
	}

	e.emit(cortexmodels.ChangeMemoryUpdated, from, projectPath)
	return true, nil
}

// OneHopLinks returns each memory's outgoing links, one hop deep. A link
// whose target itself has outgoing links is marked MoreAvailable; callers
// wanting the next hop issue another read for it.
func (e *Engine) OneHopLinks(ctx context.Context, ids []string) (map[string][]cortexmodels.LinkRef, error) {
	out := make(map[string][]cortexmodels.LinkRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}

	rows, err := e.cat.DB.QueryContext(ctx, `
		SELECT l.from_id, l.to_id, l.kind,
			EXISTS(SELECT 1 FROM memory_links n WHERE n.from_id = l.to_id) AS more
		FROM memory_links l
		WHERE l.from_id IN (`+strings.Join(marks, ", ")+`)
		ORDER BY l.from_id ASC, l.to_id ASC, l.kind ASC`, args...)
	if err != nil {
		return nil, wrapIO("load one-hop links", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fromID, kind string
		var ref cortexmodels.LinkRef
		if err := rows.Scan(&fromID, &ref.ToID, &kind, &ref.MoreAvailable); err != nil {
			return nil, wrapIO("scan link", err)
		}
		ref.Kind = cortexmodels.LinkKind(kind)
		out[fromID] = append(out[fromID], ref)
	}
	return out, rows.Err()
}

// ListTags returns (tag, count) across non-archived memories, sorted by
// count descending then tag lexicographically.
func (e *Engine) ListTags(ctx context.Context) ([]cortexmodels.Tag, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `
		SELECT mt.tag, COUNT(*) AS cnt
		FROM memory_tags mt
		JOIN memories m ON m.id = mt.memory_id
		WHERE m.status != 'archived'
		GROUP BY mt.tag
		ORDER BY cnt DESC, mt.tag ASC`)
	if err != nil {
		return nil, wrapIO("list tags", err)
	}
	defer rows.Close()

	var out []cortexmodels.Tag
	for rows.Next() {
		var t cortexmodels.Tag
		if err := rows.Scan(&t.Tag, &t.Count); err != nil {
			return nil, wrapIO("scan tag", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReviewMemories returns memories classified needs_review or outdated
// (spec.md §4.4, §4.2).
func (e *Engine) ReviewMemories(ctx context.Context) ([]cortexmodels.ScoredMemory, error) {
	mems, err := e.listAllMemories(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []cortexmodels.ScoredMemory
	for _, m := range mems {
		m.Classification = Classify(m, now)
		// Only needs_review and outdated surface for review; fresh memories
		// need nothing and archived ones are already resolved.
		if m.Classification != cortexmodels.FreshnessNeedsReview && m.Classification != cortexmodels.FreshnessOutdated {
			continue
		}
		out = append(out, cortexmodels.ScoredMemory{Memory: m})
	}
	return out, nil
}

// AccessMemories performs the batched access bookkeeping (§4.2): one update
// statement increments access_count and sets last_accessed=now for every id
// in ids.
func (e *Engine) AccessMemories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now().UTC()
	placeholders := make([]any, 0, len(ids)+1)
	placeholders = append(placeholders, now)
	q := `UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id IN (`
	for i, id := range ids {
		if i > 0 {
			q += ", "
		}
		q += "?"
		placeholders = append(placeholders, id)
	}
	q += ")"

	if _, err := e.cat.DB.ExecContext(ctx, q, placeholders...); err != nil {
		return wrapIO("batched access bookkeeping", err)
	}
	return nil
}

// GetMemory loads a single memory by id, without touching access bookkeeping.
func (e *Engine) GetMemory(ctx context.Context, id string) (cortexmodels.Memory, error) {
	return loadMemory(ctx, e.cat.DB, id)
}

// LoadMemoryByID loads a single memory by id directly off db, for read-only
// callers (internal/retrieval) that share a catalog's connection but are not
// storage.Engine writers themselves.
func LoadMemoryByID(ctx context.Context, db *sql.DB, id string) (cortexmodels.Memory, error) {
	return loadMemory(ctx, db, id)
}

// LoadMemoryByRowID resolves a memories.rowid (as returned by the FTS index)
// to its id, for internal/retrieval's keyword search path.
func LoadMemoryByRowID(ctx context.Context, db *sql.DB, rowid int64) (cortexmodels.Memory, error) {
	var id string
	if err := db.QueryRowContext(ctx, `SELECT id FROM memories WHERE rowid = ?`, rowid).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return cortexmodels.Memory{}, fmt.Errorf("%w: memory at rowid %d", corterrors.ErrNotFound, rowid)
		}
		return cortexmodels.Memory{}, wrapIO("resolve rowid", err)
	}
	return loadMemory(ctx, db, id)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadMemory(ctx context.Context, q queryer, id string) (cortexmodels.Memory, error) {
	var m cortexmodels.Memory
	var memType, status string
	var lastAccessed sql.NullTime
	row := q.QueryRowContext(ctx, `
		SELECT id, content, context, memory_type, status, importance_score, access_count, created_at, updated_at, last_accessed
		FROM memories WHERE id = ?`, id)
	if err := row.Scan(&m.ID, &m.Content, &m.Context, &memType, &status, &m.ImportanceScore, &m.AccessCount, &m.CreatedAt, &m.UpdatedAt, &lastAccessed); err != nil {
		if err == sql.ErrNoRows {
			return cortexmodels.Memory{}, fmt.Errorf("%w: memory %q", corterrors.ErrNotFound, id)
		}
		return cortexmodels.Memory{}, wrapIO("load memory", err)
	}
	m.MemoryType = cortexmodels.MemoryType(memType)
	m.Status = cortexmodels.MemoryStatus(status)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}

	tagRows, err := q.QueryContext(ctx, `SELECT tag FROM memory_tags WHERE memory_id = ? ORDER BY tag ASC`, id)
	if err != nil {
		return cortexmodels.Memory{}, wrapIO("load tags", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tag string
		if err := tagRows.Scan(&tag); err != nil {
			return cortexmodels.Memory{}, wrapIO("scan tag", err)
		}
		m.Tags = append(m.Tags, tag)
	}

	return m, nil
}

func (e *Engine) listAllMemories(ctx context.Context) ([]cortexmodels.Memory, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `SELECT id FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, wrapIO("list memories", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapIO("scan memory id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIO("iterate memories", err)
	}

	out := make([]cortexmodels.Memory, 0, len(ids))
	for _, id := range ids {
		m, err := loadMemory(ctx, e.cat.DB, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func storeVector(ctx context.Context, tx *sql.Tx, memoryID string, vector []float32) error {
	raw := encodeVector(vector)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memory_vectors (memory_id, dimension, vector) VALUES (?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET dimension = excluded.dimension, vector = excluded.vector`,
		memoryID, len(vector), raw)
	return err
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func wrapIO(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", corterrors.ErrIO, op, err)
}
