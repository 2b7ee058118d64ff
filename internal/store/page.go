package store

import (
	"sort"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// FinishPage turns the rows of an overfetching query (at most limit+1 rows)
// into a Page. Rows for an EndingBefore query arrive in ascending order and
// are flipped back to the canonical descending order.
func FinishPage(rows []model.Thread, p model.PageParams) *model.Page {
	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	if p.EndingBefore != nil {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	if rows == nil {
		rows = []model.Thread{}
	}
	return &model.Page{Threads: rows, HasMore: hasMore}
}

// PageSlice applies the pagination contract to an in-memory set of threads.
// cursor is the row named by the active cursor (nil for a first page).
func PageSlice(all []model.Thread, cursor *model.Thread, p model.PageParams) *model.Page {
	sorted := make([]model.Thread, 0, len(all))
	for _, t := range all {
		if p.FolderID != nil && (t.FolderID == nil || *t.FolderID != *p.FolderID) {
			continue
		}
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return model.Before(sorted[i], sorted[j]) })

	var rows []model.Thread
	switch {
	case p.StartingAfter != nil && cursor != nil:
		for _, t := range sorted {
			if model.Before(*cursor, t) {
				rows = append(rows, t)
				if len(rows) > p.Limit {
					break
				}
			}
		}
	case p.EndingBefore != nil && cursor != nil:
		for i := len(sorted) - 1; i >= 0; i-- {
			if model.Before(sorted[i], *cursor) {
				rows = append(rows, sorted[i])
				if len(rows) > p.Limit {
					break
				}
			}
		}
	default:
		n := p.Limit + 1
		if n > len(sorted) {
			n = len(sorted)
		}
		rows = append(rows, sorted[:n]...)
	}
	return FinishPage(rows, p)
}

// CursorID returns the id of the active cursor, if any.
func CursorID(p model.PageParams) (string, bool) {
	switch {
	case p.StartingAfter != nil:
		return *p.StartingAfter, true
	case p.EndingBefore != nil:
		return *p.EndingBefore, true
	}
	return "", false
}
