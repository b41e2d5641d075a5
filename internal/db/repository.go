package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forumly/pagefeed/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ForumRepository provides forum-related database operations
type ForumRepository struct {
	*Repository
}

// NewForumRepository creates a new forum repository
func NewForumRepository(repo *Repository) *ForumRepository {
	return &ForumRepository{Repository: repo}
}

// GetByID retrieves a forum by ID
func (r *ForumRepository) GetByID(ctx context.Context, id int64) (*models.Forum, error) {
	var forum models.Forum
	if err := r.db.WithContext(ctx).First(&forum, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &forum, nil
}

// Create creates a new forum
func (r *ForumRepository) Create(ctx context.Context, forum *models.Forum) error {
	return r.db.WithContext(ctx).Create(forum).Error
}

// Update updates a forum
func (r *ForumRepository) Update(ctx context.Context, forum *models.Forum) error {
	return r.db.WithContext(ctx).Save(forum).Error
}

// Delete deletes a forum, its comment tree and its dependent rows
func (r *ForumRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteCommentTree(tx, models.TargetForum, id); err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetForum, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetForum, id).
			Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetForum, id).
			Delete(&models.Media{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Forum{}, id).Error
	})
}

// BumpViewCount increments a forum's view counter
func (r *ForumRepository) BumpViewCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Forum{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// VideoRepository provides video-related database operations
type VideoRepository struct {
	*Repository
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(repo *Repository) *VideoRepository {
	return &VideoRepository{Repository: repo}
}

// GetByID retrieves a video by ID
func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).First(&video, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &video, nil
}

// Create creates a new video
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

// Update updates a video
func (r *VideoRepository) Update(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Save(video).Error
}

// Delete deletes a video, its comment tree and its dependent rows
func (r *VideoRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteCommentTree(tx, models.TargetVideo, id); err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetVideo, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetVideo, id).
			Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetVideo, id).
			Delete(&models.Media{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Video{}, id).Error
	})
}

// BumpViewCount increments a video's view counter
func (r *VideoRepository) BumpViewCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// deleteCommentTree removes the comments under one parent along with their
// replies, likes and media rows
func deleteCommentTree(tx *gorm.DB, parentType string, parentID int64) error {
	commentIDs := tx.Model(&models.Comment{}).
		Select("id").
		Where("target_type = ? AND target_id = ?", parentType, parentID)

	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Reply{}).Error; err != nil {
		return err
	}
	if err := tx.Where("target_type = ? AND target_id IN (?)", models.TargetComment, commentIDs).
		Delete(&models.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("target_type = ? AND target_id IN (?)", models.TargetComment, commentIDs).
		Delete(&models.Media{}).Error; err != nil {
		return err
	}
	return tx.Where("target_type = ? AND target_id = ?", parentType, parentID).
		Delete(&models.Comment{}).Error
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// GetByID retrieves a comment by ID
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// Update updates a comment
func (r *CommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

// Delete deletes a comment, its replies and its dependent rows
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetComment, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetComment, id).
			Delete(&models.Media{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, id).Error
	})
}

// ReplyRepository provides reply-related database operations
type ReplyRepository struct {
	*Repository
}

// NewReplyRepository creates a new reply repository
func NewReplyRepository(repo *Repository) *ReplyRepository {
	return &ReplyRepository{Repository: repo}
}

// GetByID retrieves a reply by ID
func (r *ReplyRepository) GetByID(ctx context.Context, id int64) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).First(&reply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reply, nil
}

// Create creates a new reply
func (r *ReplyRepository) Create(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}

// Update updates a reply
func (r *ReplyRepository) Update(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Save(reply).Error
}

// Delete deletes a reply and its dependent rows
func (r *ReplyRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetReply, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetReply, id).
			Delete(&models.Media{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Reply{}, id).Error
	})
}

// MediaRepository provides media-related database operations
type MediaRepository struct {
	*Repository
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(repo *Repository) *MediaRepository {
	return &MediaRepository{Repository: repo}
}

// CreateBatch inserts media rows for one target
func (r *MediaRepository) CreateBatch(ctx context.Context, media []models.Media) error {
	if len(media) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&media).Error
}

// GetByTarget retrieves media rows of one target ordered by position
func (r *MediaRepository) GetByTarget(ctx context.Context, targetType string, targetID int64) ([]models.Media, error) {
	var media []models.Media
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("position ASC").
		Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

// DeleteByTarget removes media rows of one target
func (r *MediaRepository) DeleteByTarget(ctx context.Context, targetType string, targetID int64) error {
	return r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Delete(&models.Media{}).Error
}

// LikeRepository provides like and favorite database operations
type LikeRepository struct {
	*Repository
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(repo *Repository) *LikeRepository {
	return &LikeRepository{Repository: repo}
}

// Like records a viewer's like; duplicate likes are no-ops
func (r *LikeRepository) Like(ctx context.Context, like *models.Like) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
}

// Unlike removes a viewer's like
func (r *LikeRepository) Unlike(ctx context.Context, userID int64, targetType string, targetID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Delete(&models.Like{}).Error
}

// Save records a viewer's favorite; duplicates are no-ops
func (r *LikeRepository) Save(ctx context.Context, fav *models.Favorite) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fav).Error
}

// Unsave removes a viewer's favorite
func (r *LikeRepository) Unsave(ctx context.Context, userID int64, targetType string, targetID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Delete(&models.Favorite{}).Error
}
