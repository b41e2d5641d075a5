package feed

import (
	"context"
	"time"
)

// ContentItem is the static projection of one cacheable unit: everything
// that is safe to hold for the page TTL. Viewer-dependent flags and live
// counts never belong here.
type ContentItem struct {
	ID           int64     `json:"id"`
	ParentID     int64     `json:"parent_id,omitempty"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Title        string    `json:"title,omitempty"`
	Body         string    `json:"body,omitempty"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DynamicFields are recomputed on every read and never written to the cache
type DynamicFields struct {
	LikeCount int64 `json:"like_count"`
	IsLiked   bool  `json:"is_liked"`
	IsSaved   bool  `json:"is_saved"`
}

// FeedItem is a response item: a cached static projection merged with the
// viewer's fresh dynamic fields. It exists only in responses.
type FeedItem struct {
	ContentItem
	DynamicFields
}

// PageResult is the result of a page read. HasMore reports whether the page
// came back full, which over-reports by one page when the true item count is
// an exact multiple of the page limit.
type PageResult struct {
	Items   []FeedItem `json:"items"`
	HasMore bool       `json:"has_more"`
}

// Store is the key/value cache the manager runs against
type Store interface {
	// Get returns (nil, nil) when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// MGet returns nil entries for absent keys
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically increments a counter and refreshes its TTL
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	ScanDelete(ctx context.Context, prefix string) error
}

// PageReader executes the cold-path relational query for one page
type PageReader interface {
	FetchPage(ctx context.Context, parentID int64, offset, limit int) ([]ContentItem, error)
}

// ItemReader loads static projections for explicit item ids
type ItemReader interface {
	FetchItems(ctx context.Context, ids []int64) ([]ContentItem, error)
}

// DynamicReader executes the cheap always-fresh query for dynamic fields,
// scoped to one viewer. Viewer id 0 means no viewer-dependent flags.
type DynamicReader interface {
	FetchDynamicFields(ctx context.Context, itemIDs []int64, viewerID int64) (map[int64]DynamicFields, error)
}

// Collection describes one feed binding: its cache namespace, page size and
// entry lifetime. Ranking and query shape live in the collection's readers.
type Collection struct {
	Name  string
	Limit int
	TTL   time.Duration
}
