package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumly/pagefeed/pkg/logging"
	"github.com/forumly/pagefeed/pkg/telemetry"
)

const (
	invalidateRetries = 3
	invalidateBackoff = 250 * time.Millisecond
	invalidateTimeout = 5 * time.Second
)

// Manager runs the cache-aside read path, the incremental append path and
// parent invalidation for one collection. The relational store stays the
// source of truth throughout: every cache failure degrades to a relational
// read or to a recompute on the next miss, never to fabricated data.
type Manager struct {
	col    Collection
	keys   KeyCodec
	store  Store
	pages  PageReader
	items  ItemReader
	dyn    DynamicReader
	logger *zap.Logger
}

// NewManager creates a manager bound to one collection
func NewManager(col Collection, store Store, pages PageReader, items ItemReader, dyn DynamicReader) *Manager {
	return &Manager{
		col:    col,
		keys:   NewKeyCodec(col.Name),
		store:  store,
		pages:  pages,
		items:  items,
		dyn:    dyn,
		logger: logging.WithComponent("feed").With(zap.String("collection", col.Name)),
	}
}

// Collection returns the manager's collection descriptor
func (m *Manager) Collection() Collection {
	return m.col
}

// GetPage returns one page of the parent's feed. Static fields come from the
// cache when present, from the relational store otherwise; dynamic fields are
// always read fresh for the given viewer. Page numbers below 1 default to 1.
func (m *Manager) GetPage(ctx context.Context, parentID int64, page int, viewerID int64) (*PageResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.get_page")
	defer span.End()

	if page < 1 {
		page = 1
	}
	key := m.keys.PageKey(parentID, page)

	var items []ContentItem
	hit := false
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		// Fail open: a broken cache degrades to the relational path
		m.logger.Warn("page cache read failed", zap.String("key", key), zap.Error(err))
	} else if raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			m.logger.Warn("discarding undecodable page entry", zap.String("key", key), zap.Error(err))
			items = nil
		} else {
			hit = true
		}
	}

	if !hit {
		offset := (page - 1) * m.col.Limit
		items, err = m.pages.FetchPage(ctx, parentID, offset, m.col.Limit)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch page %d of %s/%d: %v", ErrStorageUnavailable, page, m.col.Name, parentID, err)
		}
		if buf, err := json.Marshal(items); err == nil {
			if err := m.store.Set(ctx, key, buf, m.col.TTL); err != nil {
				m.logger.Warn("page cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	merged, err := m.mergeDynamic(ctx, items, viewerID)
	if err != nil {
		return nil, err
	}

	return &PageResult{
		Items:   merged,
		HasMore: len(items) == m.col.Limit,
	}, nil
}

// AppendToLastPage slots a newly created item into the parent's most recent
// cached page so the next read sees it without a full re-query. Page
// assignment uses a single atomic increment, so concurrent creators never
// agree on the same slot; the page entry itself is still a read-modify-write
// and can briefly under-represent items under heavy write contention, which
// the next miss or invalidation repairs. Cache failures here never fail the
// triggering write: the item is already durable, so the parent is
// invalidated instead and the next read recomputes.
func (m *Manager) AppendToLastPage(ctx context.Context, parentID int64, item ContentItem) {
	ctx, span := telemetry.StartSpan(ctx, "feed.append_last_page")
	defer span.End()

	seq, err := m.store.Incr(ctx, m.keys.TrackerKey(parentID), m.col.TTL)
	if err != nil {
		m.logger.Warn("last-page tracker increment failed", zap.Int64("parent_id", parentID), zap.Error(err))
		m.InvalidateParent(ctx, parentID)
		return
	}
	page := int((seq-1)/int64(m.col.Limit)) + 1
	key := m.keys.PageKey(parentID, page)

	var items []ContentItem
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("last page read failed", zap.String("key", key), zap.Error(err))
		m.InvalidateParent(ctx, parentID)
		return
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			m.logger.Warn("discarding undecodable page entry", zap.String("key", key), zap.Error(err))
			items = nil
		}
	}

	items = append(items, item)
	buf, err := json.Marshal(items)
	if err != nil {
		m.logger.Error("failed to encode page entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, key, buf, m.col.TTL); err != nil {
		m.logger.Warn("last page write failed", zap.String("key", key), zap.Error(err))
		m.InvalidateParent(ctx, parentID)
	}
}

// InvalidateParent purges every cached page of the parent plus its tracker,
// forcing the next read to recompute from the relational store. Failures are
// logged and retried on a bounded schedule rather than surfaced: the
// triggering write already succeeded against the source of truth, and TTL
// expiry bounds the staleness either way.
func (m *Manager) InvalidateParent(ctx context.Context, parentID int64) {
	ctx, span := telemetry.StartSpan(ctx, "feed.invalidate_parent")
	defer span.End()

	if err := m.invalidateOnce(ctx, parentID); err != nil {
		m.logger.Warn("parent invalidation failed, scheduling retry",
			zap.Int64("parent_id", parentID), zap.Error(err))
		go m.retryInvalidate(parentID)
	}
}

func (m *Manager) invalidateOnce(ctx context.Context, parentID int64) error {
	if err := m.store.ScanDelete(ctx, m.keys.PagePrefix(parentID)); err != nil {
		return err
	}
	return m.store.Delete(ctx, m.keys.TrackerKey(parentID))
}

func (m *Manager) retryInvalidate(parentID int64) {
	backoff := invalidateBackoff
	for attempt := 1; attempt <= invalidateRetries; attempt++ {
		time.Sleep(backoff)
		backoff *= 2

		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		err := m.invalidateOnce(ctx, parentID)
		cancel()
		if err == nil {
			return
		}
		m.logger.Warn("parent invalidation retry failed",
			zap.Int64("parent_id", parentID), zap.Int("attempt", attempt), zap.Error(err))
	}
	m.logger.Error("giving up on parent invalidation; stale pages expire by TTL",
		zap.Int64("parent_id", parentID))
}

// InvalidateItems purges item-detail entries after an item mutates
func (m *Manager) InvalidateItems(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m.keys.ItemKey(id)
	}
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.logger.Warn("item invalidation failed", zap.Int64s("ids", ids), zap.Error(err))
	}
}

// GetItems loads item details by id, cache-aside with a single MGet round
// trip, and merges fresh dynamic fields. Ids absent from the relational
// store are skipped; input order is preserved otherwise.
func (m *Manager) GetItems(ctx context.Context, ids []int64, viewerID int64) ([]FeedItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.get_items")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m.keys.ItemKey(id)
	}

	found := make(map[int64]ContentItem, len(ids))
	vals, err := m.store.MGet(ctx, keys...)
	if err != nil {
		m.logger.Warn("item cache read failed", zap.Error(err))
		vals = nil
	}
	for _, raw := range vals {
		if raw == nil {
			continue
		}
		var it ContentItem
		if err := json.Unmarshal(raw, &it); err == nil {
			found[it.ID] = it
		}
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fetched, err := m.items.FetchItems(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch items of %s: %v", ErrStorageUnavailable, m.col.Name, err)
		}
		for _, it := range fetched {
			found[it.ID] = it
			if buf, err := json.Marshal(it); err == nil {
				if err := m.store.Set(ctx, m.keys.ItemKey(it.ID), buf, m.col.TTL); err != nil {
					m.logger.Warn("item cache write failed", zap.Int64("id", it.ID), zap.Error(err))
				}
			}
		}
	}

	ordered := make([]ContentItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := found[id]; ok {
			ordered = append(ordered, it)
		}
	}
	return m.mergeDynamic(ctx, ordered, viewerID)
}

// mergeDynamic attaches fresh dynamic fields to static items by id. Items
// missing from the dynamic result keep zero values.
func (m *Manager) mergeDynamic(ctx context.Context, items []ContentItem, viewerID int64) ([]FeedItem, error) {
	out := make([]FeedItem, len(items))
	if len(items) == 0 {
		return out, nil
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	dyn, err := m.dyn.FetchDynamicFields(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch dynamic fields of %s: %v", ErrStorageUnavailable, m.col.Name, err)
	}

	for i, it := range items {
		out[i] = FeedItem{ContentItem: it, DynamicFields: dyn[it.ID]}
	}
	return out, nil
}
