package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumly/pagefeed/internal/blob"
	"github.com/forumly/pagefeed/internal/cache"
	"github.com/forumly/pagefeed/internal/db"
	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
	"github.com/forumly/pagefeed/internal/search"
	"github.com/forumly/pagefeed/pkg/config"
	"github.com/forumly/pagefeed/pkg/logging"
)

// Feeds holds the six feed bindings. Each is the same manager bound to one
// collection's query shape, ranking, TTL and page limit.
type Feeds struct {
	Forums        *feed.Manager
	Videos        *feed.Manager
	ForumComments *feed.Manager
	VideoComments *feed.Manager
	ForumReplies  *feed.Manager
	VideoReplies  *feed.Manager
}

// NewFeeds wires the six collection bindings
func NewFeeds(database *db.DB, store feed.Store, cfg *config.FeedConfig) Feeds {
	topLevel := func(name string, q db.FeedQuery, target string) *feed.Manager {
		reader := db.NewFeedReader(database, q)
		return feed.NewManager(
			feed.Collection{Name: name, Limit: cfg.TopLevelLimit, TTL: cfg.TopLevelTTL},
			store, reader, reader, db.NewDynamicReader(database, target),
		)
	}
	nested := func(name string, q db.FeedQuery, target string) *feed.Manager {
		reader := db.NewFeedReader(database, q)
		return feed.NewManager(
			feed.Collection{Name: name, Limit: cfg.CommentLimit, TTL: cfg.CommentTTL},
			store, reader, reader, db.NewDynamicReader(database, target),
		)
	}

	return Feeds{
		Forums:        topLevel("forum", db.ForumQuery(), models.TargetForum),
		Videos:        topLevel("video", db.VideoQuery(), models.TargetVideo),
		ForumComments: nested("forum_comment", db.CommentQuery(models.TargetForum), models.TargetComment),
		VideoComments: nested("video_comment", db.CommentQuery(models.TargetVideo), models.TargetComment),
		ForumReplies:  nested("forum_reply", db.ReplyQuery(), models.TargetReply),
		VideoReplies:  nested("video_reply", db.ReplyQuery(), models.TargetReply),
	}
}

// Router sets up API routes
type Router struct {
	db     *db.DB
	cache  *cache.Cache
	blobs  blob.Store
	sink   *search.Sink
	secret string
	feeds  Feeds
	logger *zap.Logger

	users    *db.UserRepository
	forums   *db.ForumRepository
	videos   *db.VideoRepository
	comments *db.CommentRepository
	replies  *db.ReplyRepository
	media    *db.MediaRepository
	likes    *db.LikeRepository
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, blobs blob.Store, sink *search.Sink, cfg *config.Config) *Router {
	repo := db.NewRepository(database.DB)

	var store feed.Store = redisCache
	if redisCache == nil {
		store = feed.NullStore{}
	}

	return &Router{
		db:       database,
		cache:    redisCache,
		blobs:    blobs,
		sink:     sink,
		secret:   cfg.Auth.JWTSecret,
		feeds:    NewFeeds(database, store, &cfg.Feed),
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
		users:    db.NewUserRepository(repo),
		forums:   db.NewForumRepository(repo),
		videos:   db.NewVideoRepository(repo),
		comments: db.NewCommentRepository(repo),
		replies:  db.NewReplyRepository(repo),
		media:    db.NewMediaRepository(repo),
		likes:    db.NewLikeRepository(repo),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	optional := authMiddleware(r.secret, false)
	required := authMiddleware(r.secret, true)

	v1 := engine.Group("/v1")

	// Read paths resolve the viewer when a token is present
	reads := v1.Group("", optional)
	reads.GET("/forums", r.listForums)
	reads.GET("/forums/:id", r.getForum)
	reads.GET("/forums/:id/comments", r.listComments(r.forumFamily()))
	reads.GET("/videos", r.listVideos)
	reads.GET("/videos/:id", r.getVideo)
	reads.GET("/videos/:id/comments", r.listComments(r.videoFamily()))
	reads.GET("/comments/:id/replies", r.listReplies)

	// Write paths require an authenticated caller
	writes := v1.Group("", required)
	writes.POST("/forums", r.createForum)
	writes.PUT("/forums/:id", r.updateForum)
	writes.DELETE("/forums/:id", r.deleteForum)
	writes.POST("/videos", r.createVideo)
	writes.PUT("/videos/:id", r.updateVideo)
	writes.DELETE("/videos/:id", r.deleteVideo)
	writes.POST("/forums/:id/comments", r.createComment(r.forumFamily()))
	writes.POST("/videos/:id/comments", r.createComment(r.videoFamily()))
	writes.PUT("/comments/:id", r.updateComment)
	writes.DELETE("/comments/:id", r.deleteComment)
	writes.POST("/comments/:id/replies", r.createReply)
	writes.PUT("/replies/:id", r.updateReply)
	writes.DELETE("/replies/:id", r.deleteReply)
	writes.POST("/likes", r.like)
	writes.DELETE("/likes", r.unlike)
	writes.POST("/favorites", r.save)
	writes.DELETE("/favorites", r.unsave)
	writes.POST("/media", r.uploadMedia)
}

func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	result := gin.H{"status": "OK", "service": "pagefeed"}

	if err := r.db.Health(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		result["status"] = "DEGRADED"
		result["database"] = err.Error()
	}
	if r.cache != nil {
		if err := r.cache.Health(c.Request.Context()); err != nil {
			result["cache"] = err.Error()
		}
	}

	c.JSON(status, result)
}

// family binds the handlers shared between the forum and video content
// types to one parent collection's managers
type family struct {
	parentType string
	comments   *feed.Manager
	replies    *feed.Manager
	exists     func(c *gin.Context, id int64) (bool, error)
}

func (r *Router) forumFamily() family {
	return family{
		parentType: models.TargetForum,
		comments:   r.feeds.ForumComments,
		replies:    r.feeds.ForumReplies,
		exists: func(c *gin.Context, id int64) (bool, error) {
			forum, err := r.forums.GetByID(c.Request.Context(), id)
			return forum != nil, err
		},
	}
}

func (r *Router) videoFamily() family {
	return family{
		parentType: models.TargetVideo,
		comments:   r.feeds.VideoComments,
		replies:    r.feeds.VideoReplies,
		exists: func(c *gin.Context, id int64) (bool, error) {
			video, err := r.videos.GetByID(c.Request.Context(), id)
			return video != nil, err
		},
	}
}

// familyOfComment resolves which reply manager serves a comment's replies
func (r *Router) familyOfComment(comment *models.Comment) family {
	if comment.TargetType == models.TargetVideo {
		return r.videoFamily()
	}
	return r.forumFamily()
}
