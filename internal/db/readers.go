package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
)

// FeedQuery describes one collection's cold-path query shape: which table,
// which parent filter, which columns map to the static projection, and the
// raw ranking expression for the ids query.
type FeedQuery struct {
	Table        string
	ParentColumn string // empty for top-level collections
	ParentType   string // target_type filter value, empty when unused
	ParentExpr   string // SQL expression yielding the parent id, "0" for top-level
	TitleExpr    string
	BodyExpr     string
	MediaTarget  string
	Ranking      string
}

const topLevelRanking = "(created_at >= CURRENT_DATE) DESC, view_count DESC, id DESC"

func commentRanking(table, likeTarget string) string {
	return fmt.Sprintf(
		"(created_at >= CURRENT_DATE) DESC, "+
			"(SELECT COUNT(*) FROM likes l WHERE l.target_type = '%s' AND l.target_id = %s.id) DESC, "+
			"id DESC",
		likeTarget, table)
}

// ForumQuery is the query shape of the top-level forum feed
func ForumQuery() FeedQuery {
	return FeedQuery{
		Table:       "forums",
		ParentExpr:  "0",
		TitleExpr:   "t.title",
		BodyExpr:    "t.description",
		MediaTarget: models.TargetForum,
		Ranking:     topLevelRanking,
	}
}

// VideoQuery is the query shape of the top-level video feed
func VideoQuery() FeedQuery {
	return FeedQuery{
		Table:       "videos",
		ParentExpr:  "0",
		TitleExpr:   "t.title",
		BodyExpr:    "t.description",
		MediaTarget: models.TargetVideo,
		Ranking:     topLevelRanking,
	}
}

// CommentQuery is the query shape of a comment feed under the given parent
// family (forum or video)
func CommentQuery(parentType string) FeedQuery {
	return FeedQuery{
		Table:        "comments",
		ParentColumn: "target_id",
		ParentType:   parentType,
		ParentExpr:   "t.target_id",
		TitleExpr:    "''",
		BodyExpr:     "t.content",
		MediaTarget:  models.TargetComment,
		Ranking:      commentRanking("comments", models.TargetComment),
	}
}

// ReplyQuery is the query shape of a reply feed under a comment
func ReplyQuery() FeedQuery {
	return FeedQuery{
		Table:        "replies",
		ParentColumn: "comment_id",
		ParentExpr:   "t.comment_id",
		TitleExpr:    "''",
		BodyExpr:     "t.content",
		MediaTarget:  models.TargetReply,
		Ranking:      commentRanking("replies", models.TargetReply),
	}
}

// feedRow is one flat row of the item/author/media join. The media join is
// one-to-many, so an item with N attachments yields N rows.
type feedRow struct {
	ID           int64
	ParentID     int64
	AuthorID     int64
	AuthorName   string
	AuthorAvatar string
	Title        string
	Body         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MediaURL     sql.NullString
}

// FeedReader runs the cold-path queries of one collection. It implements
// feed.PageReader and feed.ItemReader.
type FeedReader struct {
	db     *gorm.DB
	q      FeedQuery
	folder feed.RowFolder[feedRow]
}

// NewFeedReader creates a reader for one query shape
func NewFeedReader(database *DB, q FeedQuery) *FeedReader {
	return &FeedReader{
		db: database.DB,
		q:  q,
		folder: feed.RowFolder[feedRow]{
			ID: func(r feedRow) int64 { return r.ID },
			New: func(r feedRow) feed.ContentItem {
				item := feed.ContentItem{
					ID:           r.ID,
					ParentID:     r.ParentID,
					AuthorID:     r.AuthorID,
					AuthorName:   r.AuthorName,
					AuthorAvatar: r.AuthorAvatar,
					Title:        r.Title,
					Body:         r.Body,
					CreatedAt:    r.CreatedAt,
					UpdatedAt:    r.UpdatedAt,
				}
				if r.MediaURL.Valid {
					item.MediaURLs = []string{r.MediaURL.String}
				}
				return item
			},
			Merge: func(item *feed.ContentItem, r feedRow) {
				if r.MediaURL.Valid {
					item.MediaURLs = append(item.MediaURLs, r.MediaURL.String)
				}
			},
		},
	}
}

// FetchPage returns the static projections of one ranked page. Ids are
// resolved first under LIMIT/OFFSET, then hydrated with the author and media
// joins; folding collapses the duplicate rows the media join produces.
func (r *FeedReader) FetchPage(ctx context.Context, parentID int64, offset, limit int) ([]feed.ContentItem, error) {
	query := r.db.WithContext(ctx).Table(r.q.Table).Select("id")
	if r.q.ParentColumn != "" {
		query = query.Where(r.q.ParentColumn+" = ?", parentID)
	}
	if r.q.ParentType != "" {
		query = query.Where("target_type = ?", r.q.ParentType)
	}

	var ids []int64
	if err := query.Order(r.q.Ranking).Limit(limit).Offset(offset).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve page ids: %w", err)
	}

	return r.loadItems(ctx, ids)
}

// FetchItems returns static projections for explicit ids, input order kept
func (r *FeedReader) FetchItems(ctx context.Context, ids []int64) ([]feed.ContentItem, error) {
	return r.loadItems(ctx, ids)
}

func (r *FeedReader) loadItems(ctx context.Context, ids []int64) ([]feed.ContentItem, error) {
	if len(ids) == 0 {
		return []feed.ContentItem{}, nil
	}

	stmt := fmt.Sprintf(
		"SELECT t.id, %s AS parent_id, t.author_id, "+
			"u.nickname AS author_name, u.avatar_url AS author_avatar, "+
			"%s AS title, %s AS body, t.created_at, t.updated_at, m.url AS media_url "+
			"FROM %s t "+
			"JOIN users u ON u.id = t.author_id "+
			"LEFT JOIN media m ON m.target_type = ? AND m.target_id = t.id "+
			"WHERE t.id IN ? "+
			"ORDER BY t.id, m.position",
		r.q.ParentExpr, r.q.TitleExpr, r.q.BodyExpr, r.q.Table)

	var rows []feedRow
	if err := r.db.WithContext(ctx).Raw(stmt, r.q.MediaTarget, ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load feed rows: %w", err)
	}

	folded := r.folder.Fold(rows)

	// Restore ranking order: the hydration query orders by id for the fold
	byID := make(map[int64]feed.ContentItem, len(folded))
	for _, item := range folded {
		byID[item.ID] = item
	}
	items := make([]feed.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// DynamicReader serves the always-fresh per-read fields for one target type.
// It implements feed.DynamicReader.
type DynamicReader struct {
	db         *gorm.DB
	targetType string
}

// NewDynamicReader creates a dynamic-field reader for one target type
func NewDynamicReader(database *DB, targetType string) *DynamicReader {
	return &DynamicReader{db: database.DB, targetType: targetType}
}

// FetchDynamicFields returns like counts plus the viewer's like/save flags
// for the given items. Items without likes are simply absent from the map.
func (r *DynamicReader) FetchDynamicFields(ctx context.Context, itemIDs []int64, viewerID int64) (map[int64]feed.DynamicFields, error) {
	result := make(map[int64]feed.DynamicFields, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	var counts []struct {
		TargetID int64
		Cnt      int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Like{}).
		Select("target_id, COUNT(*) AS cnt").
		Where("target_type = ? AND target_id IN ?", r.targetType, itemIDs).
		Group("target_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	for _, c := range counts {
		df := result[c.TargetID]
		df.LikeCount = c.Cnt
		result[c.TargetID] = df
	}

	if viewerID == 0 {
		return result, nil
	}

	var liked []int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, r.targetType, itemIDs).
		Pluck("target_id", &liked).Error; err != nil {
		return nil, fmt.Errorf("failed to load viewer likes: %w", err)
	}
	for _, id := range liked {
		df := result[id]
		df.IsLiked = true
		result[id] = df
	}

	var saved []int64
	if err := r.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, r.targetType, itemIDs).
		Pluck("target_id", &saved).Error; err != nil {
		return nil, fmt.Errorf("failed to load viewer favorites: %w", err)
	}
	for _, id := range saved {
		df := result[id]
		df.IsSaved = true
		result[id] = df
	}

	return result, nil
}
