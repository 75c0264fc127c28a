package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// buildFilterClause renders filters (spec.md §4.4) as a SQL WHERE body
// (without the leading WHERE) plus its positional args, operating against
// the memories table aliased "m". Status defaults to excluding archived.
func buildFilterClause(filters cortexmodels.Filters) (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	if filters.MemoryType != nil {
		clauses = append(clauses, "m.memory_type = ?")
		args = append(args, string(*filters.MemoryType))
	}

	if len(filters.Status) > 0 {
		placeholders := make([]string, len(filters.Status))
		for i, s := range filters.Status {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "m.status IN ("+strings.Join(placeholders, ", ")+")")
	} else {
		clauses = append(clauses, "m.status != 'archived'")
	}

	if filters.MinImportance != nil {
		clauses = append(clauses, "m.importance_score >= ?")
		args = append(args, *filters.MinImportance)
	}
	if filters.MaxImportance != nil {
		clauses = append(clauses, "m.importance_score <= ?")
		args = append(args, *filters.MaxImportance)
	}
	if filters.LastAccessedAfter != nil {
		clauses = append(clauses, "m.last_accessed >= ?")
		args = append(args, *filters.LastAccessedAfter)
	}
	if filters.LastAccessedBefore != nil {
		clauses = append(clauses, "m.last_accessed <= ?")
		args = append(args, *filters.LastAccessedBefore)
	}

	return strings.Join(clauses, " AND "), args
}

// matchesTags reports whether mem carries at least one of the required tags
// (spec.md §4.4's "required-any tag list"). Tag filtering happens after load
// because it is a many-rows-per-memory join best done in Go for the small
// per-memory tag lists this catalog holds.
func matchesTags(mem cortexmodels.Memory, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(mem.Tags))
	for _, t := range mem.Tags {
		have[t] = struct{}{}
	}
	for _, t := range required {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) loadMemoryByID(ctx context.Context, id string, filters cortexmodels.Filters) (cortexmodels.Memory, bool, error) {
	mem, err := storage.LoadMemoryByID(ctx, e.cat.DB, id)
	if err != nil {
		if errIsNotFound(err) {
			return cortexmodels.Memory{}, false, nil
		}
		return cortexmodels.Memory{}, false, err
	}
	if !passesFilters(mem, filters) {
		return cortexmodels.Memory{}, false, nil
	}
	mem.Classification = storage.Classify(mem, time.Now().UTC())
	return mem, true, nil
}

func (e *Engine) loadMemoryByRowID(ctx context.Context, rowid int64, filters cortexmodels.Filters) (cortexmodels.Memory, bool, error) {
	mem, err := storage.LoadMemoryByRowID(ctx, e.cat.DB, rowid)
	if err != nil {
		if errIsNotFound(err) {
			return cortexmodels.Memory{}, false, nil
		}
		return cortexmodels.Memory{}, false, err
	}
	if !passesFilters(mem, filters) {
		return cortexmodels.Memory{}, false, nil
	}
	mem.Classification = storage.Classify(mem, time.Now().UTC())
	return mem, true, nil
}

func passesFilters(mem cortexmodels.Memory, filters cortexmodels.Filters) bool {
	if filters.MemoryType != nil && mem.MemoryType != *filters.MemoryType {
		return false
	}
	if len(filters.Status) > 0 {
		ok := false
		for _, s := range filters.Status {
			if mem.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	} else if mem.Status == cortexmodels.StatusArchived {
		return false
	}
	if filters.MinImportance != nil && mem.ImportanceScore < *filters.MinImportance {
		return false
	}
	if filters.MaxImportance != nil && mem.ImportanceScore > *filters.MaxImportance {
		return false
	}
	if filters.LastAccessedAfter != nil {
		if mem.LastAccessed == nil || mem.LastAccessed.Before(*filters.LastAccessedAfter) {
			return false
		}
	}
	if filters.LastAccessedBefore != nil {
		if mem.LastAccessed == nil || mem.LastAccessed.After(*filters.LastAccessedBefore) {
			return false
		}
	}
	return matchesTags(mem, filters.Tags)
}

func errIsNotFound(err error) bool {
	return err != nil && corterrors.CodeFor(err) == corterrors.CodeNotFound
}

// buildFTSQuery turns a raw user query into an FTS5 MATCH expression with
// prefix-match expansion on bare words and literal handling of quoted
// substrings (spec.md §4.4).
func buildFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	var terms []string
	var b strings.Builder
	inQuotes := false
	flush := func() {
		if b.Len() == 0 {
			return
		}
		term := b.String()
		b.Reset()
		if inQuotes {
			terms = append(terms, `"`+term+`"`)
		} else {
			terms = append(terms, term+"*")
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			flush()
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()

	return strings.Join(terms, " ")
}
