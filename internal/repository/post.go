package repository

import (
	"context"
	"time"

	"askbox/internal/cache"
	"askbox/internal/models"
	"askbox/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostCursor is the keyset position of the last post on a timeline page.
// The next page starts strictly after it in (created_at DESC, id DESC) order.
type PostCursor struct {
	CreatedAt time.Time
	ID        uint
}

// PostRepository defines persistence operations for posts and likes.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Delete(ctx context.Context, id uint) (*models.Post, error)
	ListByAuthors(ctx context.Context, authorIDs []string, limit int, before *PostCursor) ([]models.Post, error)
	LikedBy(ctx context.Context, profileID string, limit int) ([]models.Post, error)
	Like(ctx context.Context, postID uint, profileID string) (bool, error)
	Unlike(ctx context.Context, postID uint, profileID string) (bool, error)
	LikerIDs(ctx context.Context, postID uint) ([]string, error)
}

type postRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewPostRepository returns a PostRepository. store may be nil.
func NewPostRepository(db *gorm.DB, store *cache.Store) PostRepository {
	return &postRepository{db: db, cache: store}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	post.LikeIDs = []string{}
	return nil
}

// GetByID caches the post row; like ids are always read fresh.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.cache.Aside(ctx, cache.NamePost, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&post, id).Error; err != nil {
			return notFoundOr(err, "Post", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	likers, err := r.LikerIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	post.LikeIDs = likers
	return &post, nil
}

// Delete removes the post and its likes and returns the deleted row.
func (r *postRepository) Delete(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			return notFoundOr(err, "Post", id)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, cache.PostKey(id))
	return &post, nil
}

// ListByAuthors returns up to limit posts written by any of authorIDs, newest
// first with id as the tie-breaker, starting after before when it is set.
func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []string, limit int, before *PostCursor) ([]models.Post, error) {
	posts := []models.Post{}
	if len(authorIDs) == 0 {
		return posts, nil
	}
	ctx, span := observability.TraceRepositoryMethod(ctx, "ListByAuthors", "posts")
	defer observability.TrackQuery("list_by_authors", "posts")()

	q := readDB(r.db).WithContext(ctx).Where("author_id IN ?", authorIDs)
	if before != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			before.CreatedAt, before.CreatedAt, before.ID)
	}
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&posts).Error
	if err == nil {
		err = r.attachLikeIDs(ctx, posts)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// LikedBy returns the posts profileID liked, most recent like first.
func (r *postRepository) LikedBy(ctx context.Context, profileID string, limit int) ([]models.Post, error) {
	posts := []models.Post{}
	if err := readDB(r.db).WithContext(ctx).
		Joins("JOIN post_likes ON post_likes.post_id = posts.id").
		Where("post_likes.profile_id = ?", profileID).
		Order("post_likes.created_at DESC").
		Order("posts.id DESC").
		Limit(clampLimit(limit)).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachLikeIDs(ctx, posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Like is idempotent and reports whether a new like was recorded.
func (r *postRepository) Like(ctx context.Context, postID uint, profileID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostLike{PostID: postID, ProfileID: profileID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Unlike is idempotent and reports whether a like was removed.
func (r *postRepository) Unlike(ctx context.Context, postID uint, profileID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND profile_id = ?", postID, profileID).
		Delete(&models.PostLike{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) LikerIDs(ctx context.Context, postID uint) ([]string, error) {
	ids := []string{}
	if err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Pluck("profile_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *postRepository) attachLikeIDs(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	var likes []models.PostLike
	if err := readDB(r.db).WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error; err != nil {
		return err
	}
	byPost := make(map[uint][]string, len(posts))
	for _, l := range likes {
		byPost[l.PostID] = append(byPost[l.PostID], l.ProfileID)
	}
	for i := range posts {
		posts[i].LikeIDs = byPost[posts[i].ID]
		if posts[i].LikeIDs == nil {
			posts[i].LikeIDs = []string{}
		}
	}
	return nil
}
