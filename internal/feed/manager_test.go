package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/forumly/pagefeed/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Logger = zap.NewNop()
	m.Run()
}

// memStore is an in-memory Store with optional fault injection
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	counters map[string]int64

	failGet  bool
	failSet  bool
	failIncr bool
	failScan bool
}

func newMemStore() *memStore {
	return &memStore{
		data:     make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("get failed")
	}
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("set failed")
	}
	s.data[key] = value
	return nil
}

func (s *memStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("mget failed")
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.data[k]; ok {
			out[i] = v
		}
	}
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
		delete(s.counters, k)
	}
	return nil
}

func (s *memStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncr {
		return 0, errors.New("incr failed")
	}
	s.counters[key]++
	return s.counters[key], nil
}

func (s *memStore) ScanDelete(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failScan {
		return errors.New("scan failed")
	}
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *memStore) keyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// fakeReader backs pages, items and dynamic fields from an in-memory dataset
type fakeReader struct {
	mu        sync.Mutex
	rows      []ContentItem
	likes     map[int64]int64
	likedBy   map[int64]map[int64]bool
	pageCalls int
	itemCalls int
	dynCalls  int
	failPage  bool
	failDyn   bool
}

func (r *fakeReader) FetchPage(ctx context.Context, parentID int64, offset, limit int) ([]ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageCalls++
	if r.failPage {
		return nil, errors.New("db down")
	}
	var matched []ContentItem
	for _, row := range r.rows {
		if row.ParentID == parentID {
			matched = append(matched, row)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *fakeReader) FetchItems(ctx context.Context, ids []int64) ([]ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemCalls++
	var out []ContentItem
	for _, id := range ids {
		for _, row := range r.rows {
			if row.ID == id {
				out = append(out, row)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeReader) FetchDynamicFields(ctx context.Context, itemIDs []int64, viewerID int64) (map[int64]DynamicFields, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynCalls++
	if r.failDyn {
		return nil, errors.New("db down")
	}
	out := make(map[int64]DynamicFields, len(itemIDs))
	for _, id := range itemIDs {
		df := DynamicFields{LikeCount: r.likes[id]}
		if viewerID != 0 && r.likedBy[id] != nil {
			df.IsLiked = r.likedBy[id][viewerID]
		}
		out[id] = df
	}
	return out, nil
}

func item(id, parentID int64) ContentItem {
	return ContentItem{
		ID:       id,
		ParentID: parentID,
		AuthorID: 1,
		Title:    fmt.Sprintf("item %d", id),
		Body:     "body",
	}
}

func newTestManager(limit int, store Store, reader *fakeReader) *Manager {
	col := Collection{Name: "forum", Limit: limit, TTL: time.Minute}
	return NewManager(col, store, reader, reader, reader)
}

func itemIDs(items []FeedItem) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestGetPage_ColdThenWarm(t *testing.T) {
	store := newMemStore()
	withMedia := item(1, 7)
	withMedia.MediaURLs = []string{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"}
	reader := &fakeReader{rows: []ContentItem{withMedia, item(2, 7), item(3, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	cold, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("cold read failed: %v", err)
	}
	if len(cold.Items) != 2 || cold.Items[0].ID != 1 || cold.Items[1].ID != 2 {
		t.Fatalf("unexpected cold page: %v", itemIDs(cold.Items))
	}
	if !cold.HasMore {
		t.Error("expected HasMore on a full page")
	}

	warm, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("warm read failed: %v", err)
	}
	if reader.pageCalls != 1 {
		t.Errorf("expected 1 page query, got %d", reader.pageCalls)
	}
	if len(warm.Items) != len(cold.Items) {
		t.Fatalf("warm page diverged: %v vs %v", itemIDs(warm.Items), itemIDs(cold.Items))
	}
	for i := range warm.Items {
		if !reflect.DeepEqual(warm.Items[i].ContentItem, cold.Items[i].ContentItem) {
			t.Errorf("item %d diverged between cold and warm read", warm.Items[i].ID)
		}
	}
}

func TestGetPage_HasMore(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		page    int
		wantLen int
		want    bool
	}{
		{"partial page", 3, 1, 3, false},
		{"full last page over-reports", 4, 1, 4, true},
		{"page past the end", 4, 2, 0, false},
		{"middle page", 9, 2, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{}
			for i := 1; i <= tt.total; i++ {
				reader.rows = append(reader.rows, item(int64(i), 7))
			}
			m := newTestManager(4, newMemStore(), reader)

			res, err := m.GetPage(context.Background(), 7, tt.page, 0)
			if err != nil {
				t.Fatalf("GetPage failed: %v", err)
			}
			if len(res.Items) != tt.wantLen {
				t.Errorf("expected %d items, got %d", tt.wantLen, len(res.Items))
			}
			if res.HasMore != tt.want {
				t.Errorf("expected HasMore=%v, got %v", tt.want, res.HasMore)
			}
		})
	}
}

func TestGetPage_PageBelowOneDefaultsToFirst(t *testing.T) {
	reader := &fakeReader{rows: []ContentItem{item(1, 7), item(2, 7)}}
	m := newTestManager(2, newMemStore(), reader)
	ctx := context.Background()

	for _, page := range []int{0, -3} {
		res, err := m.GetPage(ctx, 7, page, 0)
		if err != nil {
			t.Fatalf("GetPage(%d) failed: %v", page, err)
		}
		if len(res.Items) != 2 || res.Items[0].ID != 1 {
			t.Errorf("GetPage(%d) did not serve the first page: %v", page, itemIDs(res.Items))
		}
	}
}

func TestGetPage_FailsOpenOnCacheError(t *testing.T) {
	store := newMemStore()
	store.failGet = true
	store.failSet = true
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, store, reader)

	res, err := m.GetPage(context.Background(), 7, 1, 0)
	if err != nil {
		t.Fatalf("expected fail-open read, got %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != 1 {
		t.Fatalf("unexpected items: %v", itemIDs(res.Items))
	}
}

func TestGetPage_DiscardsUndecodableEntry(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	store.data[m.keys.PageKey(7, 1)] = []byte("{not json")

	res, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected recomputed page, got %v", itemIDs(res.Items))
	}
	if reader.pageCalls != 1 {
		t.Errorf("expected garbage entry to force a query, got %d calls", reader.pageCalls)
	}
}

func TestGetPage_RelationalFailureSurfaces(t *testing.T) {
	reader := &fakeReader{failPage: true}
	m := newTestManager(2, newMemStore(), reader)

	_, err := m.GetPage(context.Background(), 7, 1, 0)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestGetPage_DynamicFieldsAlwaysFresh(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{
		rows:    []ContentItem{item(1, 7)},
		likes:   map[int64]int64{1: 2},
		likedBy: map[int64]map[int64]bool{1: {42: true}},
	}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	first, err := m.GetPage(ctx, 7, 1, 42)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if first.Items[0].LikeCount != 2 || !first.Items[0].IsLiked {
		t.Fatalf("unexpected dynamic fields: %+v", first.Items[0].DynamicFields)
	}

	// Likes change after the page is cached
	reader.mu.Lock()
	reader.likes[1] = 5
	reader.likedBy[1][42] = false
	reader.mu.Unlock()

	second, err := m.GetPage(ctx, 7, 1, 42)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if reader.pageCalls != 1 {
		t.Errorf("expected warm static read, got %d page queries", reader.pageCalls)
	}
	if second.Items[0].LikeCount != 5 || second.Items[0].IsLiked {
		t.Errorf("expected fresh dynamic fields, got %+v", second.Items[0].DynamicFields)
	}

	// A different viewer gets their own flags from the same cached page
	other, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if other.Items[0].IsLiked {
		t.Error("anonymous viewer must not inherit another viewer's flags")
	}
}

func TestAppendToLastPage_VisibleWithoutQuery(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{}
	m := newTestManager(3, store, reader)
	ctx := context.Background()

	created := item(10, 7)
	m.AppendToLastPage(ctx, 7, created)

	res, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != 10 {
		t.Fatalf("appended item not served: %v", itemIDs(res.Items))
	}
	if reader.pageCalls != 0 {
		t.Errorf("expected append to satisfy the read, got %d page queries", reader.pageCalls)
	}
}

func TestAppendToLastPage_RollsOverAtLimit(t *testing.T) {
	store := newMemStore()
	m := newTestManager(3, store, &fakeReader{})
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		m.AppendToLastPage(ctx, 7, item(i, 7))
	}

	var page1, page2 []ContentItem
	decodePage(t, store, m.keys.PageKey(7, 1), &page1)
	decodePage(t, store, m.keys.PageKey(7, 2), &page2)
	if len(page1) != 3 {
		t.Errorf("expected full first page, got %d items", len(page1))
	}
	if len(page2) != 1 || page2[0].ID != 4 {
		t.Errorf("expected overflow item on second page, got %v", page2)
	}
}

func TestAppendToLastPage_RolloverReadsBack(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{}
	m := newTestManager(40, store, reader)
	ctx := context.Background()

	for i := int64(1); i <= 41; i++ {
		m.AppendToLastPage(ctx, 7, item(i, 7))
	}

	first, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("GetPage(1) failed: %v", err)
	}
	if len(first.Items) != 40 || !first.HasMore {
		t.Errorf("expected 40 items with HasMore on page 1, got %d items HasMore=%v",
			len(first.Items), first.HasMore)
	}

	second, err := m.GetPage(ctx, 7, 2, 0)
	if err != nil {
		t.Fatalf("GetPage(2) failed: %v", err)
	}
	if len(second.Items) != 1 || second.HasMore {
		t.Errorf("expected 1 item without HasMore on page 2, got %d items HasMore=%v",
			len(second.Items), second.HasMore)
	}
	if second.Items[0].ID != 41 {
		t.Errorf("expected the overflow item on page 2, got id %d", second.Items[0].ID)
	}
	if reader.pageCalls != 0 {
		t.Errorf("expected both pages served from cache, got %d relational queries", reader.pageCalls)
	}
}

func TestInvalidateParent_NextReadSeesUpdatedItem(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	before, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	if before.Items[0].Body != "body" {
		t.Fatalf("unexpected initial body %q", before.Items[0].Body)
	}

	reader.mu.Lock()
	reader.rows[0].Body = "edited body"
	reader.mu.Unlock()

	// Until invalidation the stale page keeps serving
	stale, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("stale read failed: %v", err)
	}
	if stale.Items[0].Body != "body" {
		t.Fatalf("expected cached body before invalidation, got %q", stale.Items[0].Body)
	}

	m.InvalidateParent(ctx, 7)

	after, err := m.GetPage(ctx, 7, 1, 0)
	if err != nil {
		t.Fatalf("post-invalidation read failed: %v", err)
	}
	if after.Items[0].Body != "edited body" {
		t.Errorf("expected recomputed body after invalidation, got %q", after.Items[0].Body)
	}
}

func TestAppendToLastPage_ConcurrentCreatorsGetDistinctSlots(t *testing.T) {
	store := newMemStore()
	m := newTestManager(5, store, &fakeReader{})
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := int64(1); i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.AppendToLastPage(ctx, 7, item(id, 7))
		}(i)
	}
	wg.Wait()

	// Every item landed on exactly one page and no page exceeds the limit.
	// The read-modify-write on a single page entry can lose items under
	// contention; the slot assignment itself must not collide past the limit.
	seen := make(map[int64]int)
	for page := 1; page <= n; page++ {
		key := m.keys.PageKey(7, page)
		if !store.has(key) {
			continue
		}
		var items []ContentItem
		decodePage(t, store, key, &items)
		if len(items) > 5 {
			t.Errorf("page %d overfilled with %d items", page, len(items))
		}
		for _, it := range items {
			seen[it.ID]++
		}
	}
	for id, count := range seen {
		if count > 1 {
			t.Errorf("item %d appended to %d pages", id, count)
		}
	}
}

func TestAppendToLastPage_InvalidatesOnTrackerFailure(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	if _, err := m.GetPage(ctx, 7, 1, 0); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	if !store.has(m.keys.PageKey(7, 1)) {
		t.Fatal("page was not cached")
	}

	store.mu.Lock()
	store.failIncr = true
	store.mu.Unlock()
	m.AppendToLastPage(ctx, 7, item(2, 7))

	if store.has(m.keys.PageKey(7, 1)) {
		t.Error("expected failed append to purge the parent's pages")
	}
}

func TestInvalidateParent(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7), item(2, 8)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	if _, err := m.GetPage(ctx, 7, 1, 0); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	if _, err := m.GetPage(ctx, 8, 1, 0); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	m.AppendToLastPage(ctx, 7, item(3, 7))

	m.InvalidateParent(ctx, 7)

	if store.has(m.keys.PageKey(7, 1)) {
		t.Error("page entry survived invalidation")
	}
	store.mu.Lock()
	_, trackerAlive := store.counters[m.keys.TrackerKey(7)]
	store.mu.Unlock()
	if trackerAlive {
		t.Error("tracker survived invalidation")
	}
	if !store.has(m.keys.PageKey(8, 1)) {
		t.Error("invalidation leaked into a sibling parent")
	}

	queriesBefore := reader.pageCalls
	if _, err := m.GetPage(ctx, 7, 1, 0); err != nil {
		t.Fatalf("post-invalidation read failed: %v", err)
	}
	if reader.pageCalls != queriesBefore+1 {
		t.Error("expected the next read to recompute from the relational store")
	}
}

func TestGetItems_CacheAside(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7), item(2, 7), item(3, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	got, err := m.GetItems(ctx, []int64{3, 1}, 0)
	if err != nil {
		t.Fatalf("cold GetItems failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("expected input order preserved, got %v", itemIDs(got))
	}
	if reader.itemCalls != 1 {
		t.Errorf("expected 1 item query, got %d", reader.itemCalls)
	}

	// Second read is served by MGet alone
	if _, err := m.GetItems(ctx, []int64{3, 1}, 0); err != nil {
		t.Fatalf("warm GetItems failed: %v", err)
	}
	if reader.itemCalls != 1 {
		t.Errorf("expected warm read to skip the relational store, got %d calls", reader.itemCalls)
	}

	// Partial hit fetches only the missing id
	if _, err := m.GetItems(ctx, []int64{1, 2}, 0); err != nil {
		t.Fatalf("partial GetItems failed: %v", err)
	}
	if reader.itemCalls != 2 {
		t.Errorf("expected one more item query, got %d calls", reader.itemCalls)
	}
}

func TestGetItems_SkipsUnknownIDs(t *testing.T) {
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, newMemStore(), reader)

	got, err := m.GetItems(context.Background(), []int64{99, 1}, 0)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected unknown id skipped, got %v", itemIDs(got))
	}
}

func TestGetItems_Empty(t *testing.T) {
	m := newTestManager(2, newMemStore(), &fakeReader{})
	got, err := m.GetItems(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %v", got)
	}
}

func TestInvalidateItems(t *testing.T) {
	store := newMemStore()
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, store, reader)
	ctx := context.Background()

	if _, err := m.GetItems(ctx, []int64{1}, 0); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	if !store.has(m.keys.ItemKey(1)) {
		t.Fatal("item was not cached")
	}

	m.InvalidateItems(ctx, 1)
	if store.has(m.keys.ItemKey(1)) {
		t.Error("item entry survived invalidation")
	}
}

func TestNullStore_AlwaysMisses(t *testing.T) {
	reader := &fakeReader{rows: []ContentItem{item(1, 7)}}
	m := newTestManager(2, NullStore{}, reader)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := m.GetPage(ctx, 7, 1, 0)
		if err != nil {
			t.Fatalf("GetPage failed: %v", err)
		}
		if len(res.Items) != 1 {
			t.Fatalf("unexpected items: %v", itemIDs(res.Items))
		}
	}
	if reader.pageCalls != 3 {
		t.Errorf("expected every read to hit the relational store, got %d calls", reader.pageCalls)
	}
}

func decodePage(t *testing.T, store *memStore, key string, into *[]ContentItem) {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if raw == nil {
		t.Fatalf("key %s not found", key)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
}
