package seed

import (
	"fmt"
	"log/slog"
	"time"

	"askbox/internal/database"
	"askbox/internal/middleware"
	"askbox/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers            int
	ProfilesPerUser     int
	PostsPerProfile     int
	FollowsPerProfile   int
	QuestionsPerProfile int
	// AnswerRatio is the share of received questions answered with a post.
	AnswerRatio float64
	// LikesPerPost is an upper bound; each post gets a random count up to it.
	LikesPerPost int
	MaxDays      int
	RandSeed     int64
	ShouldClean  bool
	SkipBcrypt   bool
	DryRun       bool
}

// DefaultOptions is a small but connected demo graph.
func DefaultOptions() Options {
	return Options{
		NumUsers:            10,
		ProfilesPerUser:     1,
		PostsPerProfile:     5,
		FollowsPerProfile:   4,
		QuestionsPerProfile: 2,
		AnswerRatio:         0.5,
		LikesPerPost:        3,
		MaxDays:             90,
	}
}

// Summary counts what a Seed run created.
type Summary struct {
	Users     int
	Profiles  int
	Follows   int
	Questions int
	Posts     int
	Answers   int
	Likes     int
}

// Seed populates the database with a random social graph.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	log := middleware.Logger
	start := time.Now()
	log.Info("seeding database",
		slog.Int("users", opts.NumUsers),
		slog.Int("profiles_per_user", opts.ProfilesPerUser),
		slog.Bool("dry_run", opts.DryRun))

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts)
	sum := &Summary{}

	var profiles []*models.Profile
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		sum.Users++
		for j := 0; j < opts.ProfilesPerUser; j++ {
			p, err := f.CreateProfile(user)
			if err != nil {
				return nil, fmt.Errorf("failed to create profile: %w", err)
			}
			profiles = append(profiles, p)
		}
	}
	sum.Profiles = len(profiles)

	if len(profiles) > 1 {
		if err := seedFollows(f, profiles, opts.FollowsPerProfile, sum); err != nil {
			return nil, err
		}
		if err := seedQuestions(f, profiles, opts, sum); err != nil {
			return nil, err
		}
	}

	var posts []*models.Post
	for _, p := range profiles {
		for k := 0; k < opts.PostsPerProfile; k++ {
			post, err := f.CreatePost(p, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create post: %w", err)
			}
			posts = append(posts, post)
		}
	}
	sum.Posts += len(posts)

	if err := seedLikes(f, profiles, posts, opts.LikesPerPost, sum); err != nil {
		return nil, err
	}

	log.Info("seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("profiles", sum.Profiles),
		slog.Int("follows", sum.Follows),
		slog.Int("questions", sum.Questions),
		slog.Int("posts", sum.Posts),
		slog.Int("answers", sum.Answers),
		slog.Int("likes", sum.Likes),
		slog.Duration("took", time.Since(start)))
	return sum, nil
}

// seedFollows gives each profile up to n distinct followees, never itself.
func seedFollows(f *Factory, profiles []*models.Profile, n int, sum *Summary) error {
	if n > len(profiles)-1 {
		n = len(profiles) - 1
	}
	if n <= 0 {
		return nil
	}
	for i, p := range profiles {
		for _, off := range f.rng.Perm(len(profiles) - 1)[:n] {
			// Skip index i by shifting the offset past it.
			target := profiles[(i+1+off)%len(profiles)]
			if err := f.Follow(p, target); err != nil {
				return fmt.Errorf("failed to create follow: %w", err)
			}
			sum.Follows++
		}
	}
	return nil
}

func seedQuestions(f *Factory, profiles []*models.Profile, opts Options, sum *Summary) error {
	for i, recipient := range profiles {
		for k := 0; k < opts.QuestionsPerProfile; k++ {
			from := profiles[(i+1+f.rng.Intn(len(profiles)-1))%len(profiles)]
			q, err := f.CreateQuestion(from, recipient)
			if err != nil {
				return fmt.Errorf("failed to create question: %w", err)
			}
			sum.Questions++
			if f.rng.Float64() >= opts.AnswerRatio {
				continue
			}
			if _, err := f.CreatePost(recipient, q); err != nil {
				return fmt.Errorf("failed to answer question: %w", err)
			}
			sum.Posts++
			sum.Answers++
		}
	}
	return nil
}

func seedLikes(f *Factory, profiles []*models.Profile, posts []*models.Post, limit int, sum *Summary) error {
	if limit <= 0 || len(profiles) == 0 {
		return nil
	}
	if limit > len(profiles) {
		limit = len(profiles)
	}
	for _, post := range posts {
		for _, idx := range f.rng.Perm(len(profiles))[:f.rng.Intn(limit+1)] {
			if err := f.Like(profiles[idx], post); err != nil {
				return fmt.Errorf("failed to create like: %w", err)
			}
			sum.Likes++
		}
	}
	return nil
}

func clearData(db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	if db.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE post_likes, posts, questions, follows, profile_managers, profiles, users RESTART IDENTITY CASCADE`).Error
	}
	tables := database.PersistentModels()
	// Children first so foreign keys never dangle mid-way.
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
