// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"askbox/internal/middleware"
	"askbox/internal/models"
	"askbox/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded user signs in with.
const DefaultPassword = "Password123!"

var nonTagChars = regexp.MustCompile(`[^a-z0-9]+`)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	seq    int
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:   db,
		opts: opts,
		fake: gofakeit.New(seed),
		//nolint:gosec // Weak random number generator is fine for seeding
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) password() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		f.hash = string(hashed)
	}
	return f.hash, nil
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().UTC().Add(-back)
}

// slug turns a fake username into a lowercase tag stem.
func (f *Factory) slug() string {
	base := nonTagChars.ReplaceAllString(strings.ToLower(f.fake.Username()), "")
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "box"
	}
	f.seq++
	return fmt.Sprintf("%s_%d", base, f.seq)
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

func (f *Factory) persist(kind string, value any) error {
	if f.opts.DryRun {
		middleware.Logger.Debug("[dry-run] skipping insert", slog.String("kind", kind))
		return nil
	}
	return f.db.Create(value).Error
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	pw, err := f.password()
	if err != nil {
		return nil, err
	}
	username := f.slug()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: pw,
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
	}
	if err := f.persist("user", user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProfile persists a profile managed by manager.
func (f *Factory) CreateProfile(manager *models.User, overrides ...func(*models.Profile)) (*models.Profile, error) {
	profile := &models.Profile{
		Tag:  f.slug(),
		Name: clip(f.fake.Name(), validation.MaxProfileNameLength),
	}
	for _, override := range overrides {
		override(profile)
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if err := validation.ValidateProfileTag(profile.Tag); err != nil {
		return nil, fmt.Errorf("generated tag %q: %w", profile.Tag, err)
	}

	if f.opts.DryRun {
		profile.ManagerIDs = []uint{manager.ID}
		return profile, nil
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProfileManager{ProfileID: profile.ID, UserID: manager.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	profile.ManagerIDs = []uint{manager.ID}
	return profile, nil
}

// CreatePost persists a post authored by author. When answering is set the
// post answers that question, which must be addressed to author.
func (f *Factory) CreatePost(author *models.Profile, answering *models.Question, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		AuthorID:  author.ID,
		Content:   clip(f.fake.Paragraph(1, 3, 8, " "), validation.MaxPostContentLength),
		CreatedAt: f.createdAt(),
	}
	if answering != nil {
		if answering.RecipientID != author.ID {
			return nil, fmt.Errorf("question %d is not addressed to profile %s", answering.ID, author.ID)
		}
		qid := answering.ID
		post.QuestionID = &qid
		if post.CreatedAt.Before(answering.CreatedAt) {
			post.CreatedAt = answering.CreatedAt.Add(time.Minute)
		}
	}
	for _, override := range overrides {
		override(post)
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
	}
	if err := f.persist("post", post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateQuestion persists a question from one profile to another. Roughly a
// third are anonymous.
func (f *Factory) CreateQuestion(from, recipient *models.Profile) (*models.Question, error) {
	if from.ID == recipient.ID {
		return nil, fmt.Errorf("profile %s cannot ask itself", from.ID)
	}
	q := &models.Question{
		FromID:      from.ID,
		RecipientID: recipient.ID,
		Content:     clip(f.fake.Question(), validation.MaxQuestionContentLength),
		Anonymous:   f.rng.Intn(3) == 0,
		CreatedAt:   f.createdAt(),
	}
	if f.opts.DryRun {
		f.nextID++
		q.ID = f.nextID
	}
	if err := f.persist("question", q); err != nil {
		return nil, err
	}
	return q, nil
}

// Follow records that follower follows followed.
func (f *Factory) Follow(follower, followed *models.Profile) error {
	if follower.ID == followed.ID {
		return fmt.Errorf("profile %s cannot follow itself", follower.ID)
	}
	return f.persist("follow", &models.Follow{FollowerID: follower.ID, FollowedID: followed.ID})
}

// Like records that profile liked post.
func (f *Factory) Like(profile *models.Profile, post *models.Post) error {
	return f.persist("like", &models.PostLike{PostID: post.ID, ProfileID: profile.ID})
}
