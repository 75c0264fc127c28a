// Package retrieval implements the keyword, semantic, and hybrid search
// modes over a catalog (spec.md §4.4). It is a read-only companion to
// internal/storage: it never writes, but shares the same catalog handle and
// embedder. Grounded on the teacher's internal/memory.Manager.Search
// (query embedding + backend search + scored results), generalized from a
// single vector-similarity backend to three ranking modes plus filters and
// freshness classification.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// SemanticThreshold is the minimum cosine similarity a semantic-mode result
// must clear to be returned (spec.md §4.4).
const SemanticThreshold = 0.2

// DefaultLimit and MaxLimit bound cortex_recall / cortex_list_memories
// pagination (spec.md §4.4).
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Engine answers read-only queries against a catalog.
type Engine struct {
	cat      *catalog.Catalog
	embedder embedding.Embedder
	logger   *slog.Logger
}

// New creates a retrieval Engine over an already-opened catalog.
func New(cat *catalog.Catalog, embedder embedding.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cat: cat, embedder: embedder, logger: logger.With("component", "retrieval")}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Recall runs the named search mode over query and returns a ranked,
// paginated result (spec.md §4.4, §6.1). An empty mode selects hybrid
// search; an empty query is searched like any other and is not routed to
// ListMemories.
func (e *Engine) Recall(ctx context.Context, query string, mode cortexmodels.SearchMode, filters cortexmodels.Filters, limit, offset int) ([]cortexmodels.ScoredMemory, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if mode == "" {
		mode = cortexmodels.SearchHybrid
	}

	var (
		ranked []cortexmodels.ScoredMemory
		err    error
	)
	switch mode {
	case cortexmodels.SearchKeyword:
		ranked, err = e.keywordSearch(ctx, query, filters, limit+offset)
	case cortexmodels.SearchSemantic:
		ranked, err = e.semanticSearch(ctx, query, filters, limit+offset)
	case cortexmodels.SearchHybrid:
		ranked, err = e.hybridSearch(ctx, query, filters, limit+offset)
	default:
		return nil, corterrors.Invalid("mode", fmt.Sprintf("unknown search mode %q", mode))
	}
	if err != nil {
		return nil, err
	}

	return paginate(ranked, limit, offset), nil
}

func paginate(ranked []cortexmodels.ScoredMemory, limit, offset int) []cortexmodels.ScoredMemory {
	if offset >= len(ranked) {
		return nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

// keywordSearch evaluates the FTS query, scores by BM25, and drops rows that
// fail filters (spec.md §4.4).
func (e *Engine) keywordSearch(ctx context.Context, query string, filters cortexmodels.Filters, want int) ([]cortexmodels.ScoredMemory, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := e.cat.DB.QueryContext(ctx, `
		SELECT m.rowid, bm25(memory_fts) AS score
		FROM memory_fts
		JOIN memories m ON m.rowid = memory_fts.rowid
		WHERE memory_fts MATCH ?
		ORDER BY score ASC`, ftsQuery)
	if err != nil {
		return nil, wrapIO("fts query", err)
	}
	defer rows.Close()

	type hit struct {
		rowid int64
		score float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.rowid, &h.score); err != nil {
			return nil, wrapIO("scan fts hit", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapIO("iterate fts hits", err)
	}

	out := make([]cortexmodels.ScoredMemory, 0, len(hits))
	for _, h := range hits {
		mem, ok, err := e.loadMemoryByRowID(ctx, h.rowid, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// bm25() returns lower-is-better; invert so higher score ranks first,
		// matching the sort convention used by semantic and hybrid modes.
		out = append(out, cortexmodels.ScoredMemory{Memory: mem, Score: -h.score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return tieBreak(out[i].Memory, out[j].Memory)
	})
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

// semanticSearch embeds query and ranks candidates by cosine similarity. If
// the embedder is unavailable, it degrades to keyword mode and annotates the
// result (spec.md §4.4).
func (e *Engine) semanticSearch(ctx context.Context, query string, filters cortexmodels.Filters, want int) ([]cortexmodels.ScoredMemory, error) {
	if e.embedder == nil || !e.embedder.IsAvailable() {
		e.logger.Warn("embedder unavailable, degrading semantic search to keyword mode")
		results, err := e.keywordSearch(ctx, query, filters, want)
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Degraded = true
		}
		return results, nil
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", corterrors.ErrIO, err)
	}
	queryVec := vecs[0]

	candidates, err := e.candidatesWithVectors(ctx, filters)
	if err != nil {
		return nil, err
	}

	out := make([]cortexmodels.ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		sim := cosine(queryVec, c.vector)
		if sim < SemanticThreshold {
			continue
		}
		out = append(out, cortexmodels.ScoredMemory{Memory: c.memory, Score: sim})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return tieBreak(out[i].Memory, out[j].Memory)
	})
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

// hybridSearch blends normalized keyword and semantic top-K lists 0.5/0.5
// (spec.md §4.4).
func (e *Engine) hybridSearch(ctx context.Context, query string, filters cortexmodels.Filters, want int) ([]cortexmodels.ScoredMemory, error) {
	k := want * 3
	if k < 1 {
		k = 1
	}

	keywordResults, err := e.keywordSearch(ctx, query, filters, k)
	if err != nil {
		return nil, err
	}
	semanticResults, err := e.semanticSearch(ctx, query, filters, k)
	if err != nil {
		return nil, err
	}

	keywordNorm := normalize(keywordResults)
	semanticNorm := normalize(semanticResults)

	combined := make(map[string]*cortexmodels.ScoredMemory)
	for id, score := range keywordNorm {
		combined[id] = &cortexmodels.ScoredMemory{Score: 0.5 * score}
	}
	degraded := false
	for id, score := range semanticNorm {
		if sm, ok := combined[id]; ok {
			sm.Score += 0.5 * score
		} else {
			combined[id] = &cortexmodels.ScoredMemory{Score: 0.5 * score}
		}
	}
	byID := make(map[string]cortexmodels.Memory)
	for _, r := range keywordResults {
		byID[r.Memory.ID] = r.Memory
	}
	for _, r := range semanticResults {
		byID[r.Memory.ID] = r.Memory
		if r.Degraded {
			degraded = true
		}
	}

	out := make([]cortexmodels.ScoredMemory, 0, len(combined))
	for id, sm := range combined {
		mem, ok := byID[id]
		if !ok {
			continue
		}
		sm.Memory = mem
		sm.Degraded = degraded
		out = append(out, *sm)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return tieBreak(out[i].Memory, out[j].Memory)
	})
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

func normalize(results []cortexmodels.ScoredMemory) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}
	max := results[0].Score
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		max = 1
	}
	for _, r := range results {
		out[r.Memory.ID] = r.Score / max
	}
	return out
}

func tieBreak(a, b cortexmodels.Memory) bool {
	aLA, bLA := accessTime(a), accessTime(b)
	if !aLA.Equal(bLA) {
		return aLA.After(bLA)
	}
	return a.ID > b.ID
}

func accessTime(m cortexmodels.Memory) time.Time {
	if m.LastAccessed != nil {
		return *m.LastAccessed
	}
	return time.Time{}
}

type candidate struct {
	memory cortexmodels.Memory
	vector []float32
}

func (e *Engine) candidatesWithVectors(ctx context.Context, filters cortexmodels.Filters) ([]candidate, error) {
	rows, err := e.cat.DB.QueryContext(ctx, `SELECT memory_id, vector FROM memory_vectors`)
	if err != nil {
		return nil, wrapIO("list vectors", err)
	}
	type row struct {
		id  string
		raw []byte
	}
	var raws []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.raw); err != nil {
			rows.Close()
			return nil, wrapIO("scan vector", err)
		}
		raws = append(raws, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIO("iterate vectors", err)
	}

	out := make([]candidate, 0, len(raws))
	for _, r := range raws {
		mem, ok, err := e.loadMemoryByID(ctx, r.id, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, candidate{memory: mem, vector: storage.DecodeVector(r.raw)})
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ListMemories lists memories matching filters (no query/ranking), sorted by
// sortBy/sortOrder (spec.md §6.1).
func (e *Engine) ListMemories(ctx context.Context, filters cortexmodels.Filters, sortBy, sortOrder string, limit, offset int) ([]cortexmodels.Memory, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	column := sortColumn(sortBy)
	order := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		order = "ASC"
	}

	clause, args := buildFilterClause(filters)
	q := fmt.Sprintf(`SELECT id FROM memories m WHERE %s ORDER BY %s %s, id DESC LIMIT ? OFFSET ?`, clause, column, order)
	args = append(args, limit, offset)

	rows, err := e.cat.DB.QueryContext(ctx, q, args...)
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
		mem, ok, err := e.loadMemoryByID(ctx, id, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, mem)
		}
	}
	return out, nil
}

func sortColumn(sortBy string) string {
	switch sortBy {
	case "last_accessed":
		return "last_accessed"
	case "importance_score":
		return "importance_score"
	case "access_count":
		return "access_count"
	default:
		return "created_at"
	}
}

func wrapIO(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", corterrors.ErrIO, op, err)
}
