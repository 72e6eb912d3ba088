package service

import (
	"context"

	"askbox/internal/events"
	"askbox/internal/models"
	"askbox/internal/observability"
	"askbox/internal/repository"
	"askbox/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Timeline page bounds.
const (
	DefaultTimelineLimit = 20
	MaxTimelineLimit     = 100
)

type PostService struct {
	postRepo     repository.PostRepository
	profileRepo  repository.ProfileRepository
	questionRepo repository.QuestionRepository
	publisher    events.Publisher
}

// TimelineInput selects posts by author set. Before is the opaque cursor
// returned as NextCursor by the previous page.
type TimelineInput struct {
	ProfileIDs []string
	Expand     models.PostExpand
	Limit      int
	Before     string
}

// TimelinePage holds one page, newest first. NextCursor is empty when the
// page was not full.
type TimelinePage struct {
	Posts      []models.Post `json:"posts"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type CreatePostInput struct {
	AuthorID   string
	Content    string
	QuestionID *uint
}

func NewPostService(
	postRepo repository.PostRepository,
	profileRepo repository.ProfileRepository,
	questionRepo repository.QuestionRepository,
	publisher events.Publisher,
) *PostService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PostService{
		postRepo:     postRepo,
		profileRepo:  profileRepo,
		questionRepo: questionRepo,
		publisher:    publisher,
	}
}

// GetByProfileList returns posts written by any profile in in.ProfileIDs,
// ordered by creation time descending then id descending. Repeated ids are
// collapsed, so each post appears once.
func (s *PostService) GetByProfileList(ctx context.Context, in TimelineInput) (*TimelinePage, error) {
	ids := uniqueStrings(in.ProfileIDs)
	for _, id := range ids {
		if err := checkProfileID(id); err != nil {
			return nil, err
		}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultTimelineLimit
	}
	if limit > MaxTimelineLimit {
		limit = MaxTimelineLimit
	}
	before, err := DecodeCursor(in.Before)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "post_service", "timeline",
		attribute.Int("timeline.authors", len(ids)),
		attribute.Int("timeline.limit", limit),
	)
	posts, err := s.postRepo.ListByAuthors(ctx, ids, limit, before)
	if err == nil {
		err = s.expandAll(ctx, posts, in.Expand)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	observability.TimelineAuthors.Observe(float64(len(ids)))
	observability.TimelinePosts.Observe(float64(len(posts)))

	page := &TimelinePage{Posts: posts}
	if len(posts) == limit {
		last := posts[len(posts)-1]
		page.NextCursor = EncodeCursor(repository.PostCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Create publishes a post. When QuestionID is set the question must have
// been asked of the author.
func (s *PostService) Create(ctx context.Context, in CreatePostInput, expand models.PostExpand) (*models.Post, error) {
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := checkProfileID(in.AuthorID); err != nil {
		return nil, err
	}
	if _, err := s.profileRepo.GetByID(ctx, in.AuthorID); err != nil {
		return nil, err
	}
	if in.QuestionID != nil {
		q, err := s.questionRepo.GetByID(ctx, *in.QuestionID)
		if err != nil {
			return nil, err
		}
		if q.RecipientID != in.AuthorID {
			return nil, models.NewValidationError("A post can only answer a question asked of its author")
		}
	}

	post := &models.Post{AuthorID: in.AuthorID, Content: in.Content, QuestionID: in.QuestionID}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, events.Event{
		Type:      events.TypePostCreated,
		ProfileID: post.AuthorID,
		Payload:   map[string]any{"post_id": post.ID},
	})
	if err := s.expand(ctx, post, expand); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) Get(ctx context.Context, id uint, expand models.PostExpand) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, post, expand); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.Delete(ctx, id)
}

// Like records that profileID likes the post. Repeating it is a no-op.
func (s *PostService) Like(ctx context.Context, postID uint, profileID string) error {
	post, err := s.checkLike(ctx, postID, profileID)
	if err != nil {
		return err
	}
	created, err := s.postRepo.Like(ctx, postID, profileID)
	if err != nil {
		return err
	}
	if created && post.AuthorID != profileID {
		events.Emit(ctx, s.publisher, events.Event{
			Type:      events.TypePostLiked,
			ProfileID: post.AuthorID,
			ActorID:   profileID,
			Payload:   map[string]any{"post_id": postID},
		})
	}
	return nil
}

func (s *PostService) Unlike(ctx context.Context, postID uint, profileID string) error {
	if _, err := s.checkLike(ctx, postID, profileID); err != nil {
		return err
	}
	_, err := s.postRepo.Unlike(ctx, postID, profileID)
	return err
}

func (s *PostService) checkLike(ctx context.Context, postID uint, profileID string) (*models.Post, error) {
	if err := checkProfileID(profileID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.profileRepo.Exists(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Profile", profileID)
	}
	return post, nil
}

func (s *PostService) expand(ctx context.Context, post *models.Post, expand models.PostExpand) error {
	posts := []models.Post{*post}
	if err := s.expandAll(ctx, posts, expand); err != nil {
		return err
	}
	*post = posts[0]
	return nil
}

// expandAll resolves relations for a page with one lookup per relation kind.
func (s *PostService) expandAll(ctx context.Context, posts []models.Post, expand models.PostExpand) error {
	if !expand.Any() || len(posts) == 0 {
		return nil
	}

	if expand.Author || expand.Likes {
		var ids []string
		for _, p := range posts {
			if expand.Author {
				ids = append(ids, p.AuthorID)
			}
			if expand.Likes {
				ids = append(ids, p.LikeIDs...)
			}
		}
		profiles, err := s.profileRepo.GetByIDs(ctx, uniqueStrings(ids))
		if err != nil {
			return err
		}
		byID := make(map[string]models.Profile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		for i := range posts {
			if expand.Author {
				if author, ok := byID[posts[i].AuthorID]; ok {
					posts[i].Author = &author
				}
			}
			if expand.Likes {
				posts[i].Likes = make([]models.Profile, 0, len(posts[i].LikeIDs))
				for _, id := range posts[i].LikeIDs {
					if liker, ok := byID[id]; ok {
						posts[i].Likes = append(posts[i].Likes, liker)
					}
				}
			}
		}
	}

	if expand.Question {
		questions := make(map[uint]*models.Question)
		for i := range posts {
			qid := posts[i].QuestionID
			if qid == nil {
				continue
			}
			q, seen := questions[*qid]
			if !seen {
				found, err := s.questionRepo.GetByID(ctx, *qid)
				if err != nil && !models.IsNotFound(err) {
					return err
				}
				q = found
				questions[*qid] = q
			}
			if q != nil {
				copied := VisibleQuestion(*q, nil)
				posts[i].Question = &copied
			}
		}
	}
	return nil
}
