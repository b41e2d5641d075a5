package feed

// RowFolder folds flat query rows into items. A join against a one-to-many
// media relation yields one row per attachment; folding groups them by item
// id while preserving first-seen row order.
type RowFolder[R any] struct {
	// ID extracts the item id of a row
	ID func(R) int64
	// New builds the item from its first row
	New func(R) ContentItem
	// Merge absorbs a subsequent row into an existing item
	Merge func(*ContentItem, R)
}

// Fold groups rows into one item per distinct id
func (f RowFolder[R]) Fold(rows []R) []ContentItem {
	items := make([]ContentItem, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		id := f.ID(row)
		if pos, ok := index[id]; ok {
			f.Merge(&items[pos], row)
			continue
		}
		index[id] = len(items)
		items = append(items, f.New(row))
	}
	return items
}
