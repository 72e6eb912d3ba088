// Command seed fills the askbox database with a random demo social graph.
package main

import (
	"flag"
	"log/slog"
	"os"

	"askbox/internal/config"
	"askbox/internal/database"
	"askbox/internal/middleware"
	"askbox/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	opts := defaults

	flag.IntVar(&opts.NumUsers, "users", defaults.NumUsers, "Number of users to create")
	flag.IntVar(&opts.ProfilesPerUser, "profiles", defaults.ProfilesPerUser, "Profiles managed by each user")
	flag.IntVar(&opts.PostsPerProfile, "posts", defaults.PostsPerProfile, "Posts written by each profile")
	flag.IntVar(&opts.FollowsPerProfile, "follows", defaults.FollowsPerProfile, "Profiles each profile follows")
	flag.IntVar(&opts.QuestionsPerProfile, "questions", defaults.QuestionsPerProfile, "Questions received by each profile")
	flag.Float64Var(&opts.AnswerRatio, "answer-ratio", defaults.AnswerRatio, "Share of questions answered with a post")
	flag.IntVar(&opts.LikesPerPost, "likes", defaults.LikesPerPost, "Upper bound of likes per post")
	flag.IntVar(&opts.MaxDays, "max-days", defaults.MaxDays, "Spread created_at over this many days")
	flag.Int64Var(&opts.RandSeed, "rand-seed", 0, "Deterministic random seed (0 uses the clock)")
	flag.BoolVar(&opts.ShouldClean, "clean", true, "Clean database before seeding")
	flag.BoolVar(&opts.SkipBcrypt, "fast", false, "Store plain passwords (local throwaway databases only)")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Generate without writing")
	flag.Parse()

	log := middleware.Logger

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsProduction() {
		log.Error("Refusing to seed a production database")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	if _, err := seed.Seed(db, opts); err != nil {
		log.Error("Seeding failed", slog.String("error", err.Error()))
		database.Close()
		os.Exit(1)
	}
	log.Info("Seed users sign in with the shared demo password", slog.String("password", seed.DefaultPassword))
}
