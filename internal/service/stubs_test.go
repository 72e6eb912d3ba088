package service

import (
	"context"
	"sync"

	"askbox/internal/events"
	"askbox/internal/models"
	"askbox/internal/repository"
)

// profileRepoStub is a stub for repository.ProfileRepository. Unset functions
// fall back to an empty, successful result.
type profileRepoStub struct {
	getByIDFn       func(context.Context, string) (*models.Profile, error)
	getByIDsFn      func(context.Context, []string) ([]models.Profile, error)
	getByTagFn      func(context.Context, string) (*models.Profile, error)
	existsFn        func(context.Context, string) (bool, error)
	createFn        func(context.Context, *models.Profile, uint) error
	updateFn        func(context.Context, *models.Profile) error
	deleteFn        func(context.Context, string) (*models.Profile, error)
	followFn        func(context.Context, string, string) (bool, error)
	unfollowFn      func(context.Context, string, string) (bool, error)
	followersFn     func(context.Context, string) ([]models.Profile, error)
	followingFn     func(context.Context, string) ([]models.Profile, error)
	followerIDsFn   func(context.Context, string) ([]string, error)
	followingIDsFn  func(context.Context, string) ([]string, error)
	relationshipsFn func(context.Context, string, []string) (map[string]models.Relationship, error)
}

var _ repository.ProfileRepository = (*profileRepoStub)(nil)

func (s *profileRepoStub) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if s.getByIDFn == nil {
		return &models.Profile{ID: id, ManagerIDs: []uint{}}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *profileRepoStub) GetByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if s.getByIDsFn == nil {
		out := make([]models.Profile, 0, len(ids))
		for _, id := range ids {
			out = append(out, models.Profile{ID: id})
		}
		return out, nil
	}
	return s.getByIDsFn(ctx, ids)
}
func (s *profileRepoStub) GetByTag(ctx context.Context, tag string) (*models.Profile, error) {
	if s.getByTagFn == nil {
		return nil, nil
	}
	return s.getByTagFn(ctx, tag)
}
func (s *profileRepoStub) Exists(ctx context.Context, id string) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, id)
}
func (s *profileRepoStub) Create(ctx context.Context, p *models.Profile, ownerID uint) error {
	if s.createFn == nil {
		p.ID = "00000000-0000-0000-0000-0000000000aa"
		p.ManagerIDs = []uint{ownerID}
		return nil
	}
	return s.createFn(ctx, p, ownerID)
}
func (s *profileRepoStub) Update(ctx context.Context, p *models.Profile) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, p)
}
func (s *profileRepoStub) Delete(ctx context.Context, id string) (*models.Profile, error) {
	if s.deleteFn == nil {
		return &models.Profile{ID: id}, nil
	}
	return s.deleteFn(ctx, id)
}
func (s *profileRepoStub) Follow(ctx context.Context, followerID, followedID string) (bool, error) {
	if s.followFn == nil {
		return true, nil
	}
	return s.followFn(ctx, followerID, followedID)
}
func (s *profileRepoStub) Unfollow(ctx context.Context, followerID, followedID string) (bool, error) {
	if s.unfollowFn == nil {
		return true, nil
	}
	return s.unfollowFn(ctx, followerID, followedID)
}
func (s *profileRepoStub) Followers(ctx context.Context, id string) ([]models.Profile, error) {
	if s.followersFn == nil {
		return []models.Profile{}, nil
	}
	return s.followersFn(ctx, id)
}
func (s *profileRepoStub) Following(ctx context.Context, id string) ([]models.Profile, error) {
	if s.followingFn == nil {
		return []models.Profile{}, nil
	}
	return s.followingFn(ctx, id)
}
func (s *profileRepoStub) FollowerIDs(ctx context.Context, id string) ([]string, error) {
	if s.followerIDsFn == nil {
		return []string{}, nil
	}
	return s.followerIDsFn(ctx, id)
}
func (s *profileRepoStub) FollowingIDs(ctx context.Context, id string) ([]string, error) {
	if s.followingIDsFn == nil {
		return []string{}, nil
	}
	return s.followingIDsFn(ctx, id)
}
func (s *profileRepoStub) Relationships(ctx context.Context, viewerID string, ids []string) (map[string]models.Relationship, error) {
	if s.relationshipsFn == nil {
		return map[string]models.Relationship{}, nil
	}
	return s.relationshipsFn(ctx, viewerID, ids)
}
func (s *profileRepoStub) ManagerIDs(context.Context, string) ([]uint, error) { return []uint{}, nil }
func (s *profileRepoStub) AddManager(context.Context, string, uint) error     { return nil }
func (s *profileRepoStub) RemoveManager(context.Context, string, uint) error  { return nil }
func (s *profileRepoStub) Invalidate(context.Context, ...string)              {}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	listByAuthorsFn func(context.Context, []string, int, *repository.PostCursor) ([]models.Post, error)
	likeFn          func(context.Context, uint, string) (bool, error)
}

var _ repository.PostRepository = (*postRepoStub)(nil)

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error {
	if s.createFn == nil {
		p.ID = 1
		return nil
	}
	return s.createFn(ctx, p)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Delete(_ context.Context, id uint) (*models.Post, error) {
	return &models.Post{ID: id}, nil
}
func (s *postRepoStub) ListByAuthors(ctx context.Context, ids []string, limit int, before *repository.PostCursor) ([]models.Post, error) {
	if s.listByAuthorsFn == nil {
		return []models.Post{}, nil
	}
	return s.listByAuthorsFn(ctx, ids, limit, before)
}
func (s *postRepoStub) LikedBy(context.Context, string, int) ([]models.Post, error) {
	return []models.Post{}, nil
}
func (s *postRepoStub) Like(ctx context.Context, postID uint, profileID string) (bool, error) {
	if s.likeFn == nil {
		return true, nil
	}
	return s.likeFn(ctx, postID, profileID)
}
func (s *postRepoStub) Unlike(context.Context, uint, string) (bool, error) { return true, nil }
func (s *postRepoStub) LikerIDs(context.Context, uint) ([]string, error)   { return []string{}, nil }

// questionRepoStub is a stub for repository.QuestionRepository.
type questionRepoStub struct {
	createFn  func(context.Context, *models.Question) error
	getByIDFn func(context.Context, uint) (*models.Question, error)
	listFn    func(context.Context, string, int, int) ([]models.Question, error)
}

var _ repository.QuestionRepository = (*questionRepoStub)(nil)

func (s *questionRepoStub) Create(ctx context.Context, q *models.Question) error {
	if s.createFn == nil {
		q.ID = 1
		return nil
	}
	return s.createFn(ctx, q)
}
func (s *questionRepoStub) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Question", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *questionRepoStub) ListByRecipient(ctx context.Context, id string, limit, offset int) ([]models.Question, error) {
	return s.listFn(ctx, id, limit, offset)
}
func (s *questionRepoStub) ListByAsker(ctx context.Context, id string, limit, offset int) ([]models.Question, error) {
	return s.listFn(ctx, id, limit, offset)
}
func (s *questionRepoStub) Delete(_ context.Context, id uint) (*models.Question, error) {
	return &models.Question{ID: id}, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}
func (p *recordingPublisher) Backend() string { return "recording" }
func (p *recordingPublisher) Close() error    { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
