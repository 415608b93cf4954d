// Command seed fills the document store with demo users, posts and comments.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"reelshare/internal/bootstrap"
	"reelshare/internal/config"
	"reelshare/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	flag.IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	flag.IntVar(&opts.FollowsPerUser, "follows", opts.FollowsPerUser, "Maximum follows per user")
	flag.IntVar(&opts.Music, "music", opts.Music, "Number of soundtracks to create")
	flag.IntVar(&opts.Videos, "videos", opts.Videos, "Number of videos to create")
	flag.IntVar(&opts.Images, "images", opts.Images, "Number of images to create")
	flag.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "Maximum top-level comments per post")
	flag.IntVar(&opts.RepliesPerComment, "replies", opts.RepliesPerComment, "Maximum replies per comment")
	flag.IntVar(&opts.MaxDays, "days", opts.MaxDays, "Spread createdAt over this many days")
	flag.Int64Var(&opts.Seed, "seed", 0, "Random seed, 0 for a random run")
	shouldClean := flag.Bool("clean", true, "Delete all documents before seeding")
	flag.Parse()

	log.Printf("Target: %d users, %d videos, %d images, clean=%v", opts.Users, opts.Videos, opts.Images, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if _, err := bootstrap.InitObservability(cfg, "reelshare-seed", os.Stdout); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Done: %d users, %d follows, %d videos, %d images, %d comments",
		len(res.Users), res.Follows, len(res.Videos), len(res.Images), res.Comments)
}
