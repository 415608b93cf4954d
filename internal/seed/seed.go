// Package seed fills the document store with demo data for development and
// tests. It writes through the repository, bypassing the HTTP API.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much data a Seeder creates.
type Options struct {
	Users int
	// FollowsPerUser is the number of users each user follows, at most.
	FollowsPerUser int
	Music          int
	Videos         int
	Images         int
	// CommentsPerPost is the number of top-level comments per post, at most.
	CommentsPerPost int
	// RepliesPerComment is the number of replies per comment, at most.
	RepliesPerComment int
	// MaxDays spreads createdAt over that many days before now.
	MaxDays int
	// Seed makes runs deterministic when non-zero.
	Seed int64
}

// DefaultOptions is a small but lively data set.
var DefaultOptions = Options{
	Users:             20,
	FollowsPerUser:    6,
	Music:             8,
	Videos:            40,
	Images:            30,
	CommentsPerPost:   4,
	RepliesPerComment: 2,
	MaxDays:           30,
}

// Result lists the ids that were created.
type Result struct {
	Users    []string
	Music    []string
	Videos   []string
	Images   []string
	Comments int
	Follows  int
}

// Seeder writes generated documents.
type Seeder struct {
	db      *gorm.DB
	repo    repository.DocumentRepository
	factory *Factory
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	repo := repository.NewDocumentRepository(db)
	return &Seeder{db: db, repo: repo, factory: NewFactory(repo, opts)}
}

// ClearAll deletes every stored document.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Document{}).Error; err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	observability.Logger.InfoContext(ctx, "cleared all documents")
	return nil
}

// Run creates users with follow edges, music, posts and comment threads.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	f := s.factory
	res := &Result{}

	for range f.opts.Users {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return res, err
		}
		res.Users = append(res.Users, u.ID)
	}
	if len(res.Users) == 0 {
		return res, nil
	}

	follows, err := f.CreateFollowMesh(ctx, res.Users)
	if err != nil {
		return res, err
	}
	res.Follows = follows

	for range f.opts.Music {
		m, err := f.CreateMusic(ctx)
		if err != nil {
			return res, err
		}
		res.Music = append(res.Music, m.ID)
	}

	var posts []post
	for range f.opts.Videos {
		v, err := f.CreateVideo(ctx, f.pick(res.Users), res.Music, res.Users)
		if err != nil {
			return res, err
		}
		res.Videos = append(res.Videos, v.ID)
		posts = append(posts, post{models.EntityVideo, v.ID, v.UserID})
	}
	for range f.opts.Images {
		img, err := f.CreateImage(ctx, f.pick(res.Users), res.Users)
		if err != nil {
			return res, err
		}
		res.Images = append(res.Images, img.ID)
		posts = append(posts, post{models.EntityImage, img.ID, img.UserID})
	}

	for _, p := range posts {
		n, err := f.CreateThread(ctx, p.kind, p.id, res.Users)
		if err != nil {
			return res, err
		}
		res.Comments += n
	}

	observability.Logger.InfoContext(ctx, "seeding complete",
		"users", len(res.Users),
		"follows", res.Follows,
		"music", len(res.Music),
		"videos", len(res.Videos),
		"images", len(res.Images),
		"comments", res.Comments,
	)
	return res, nil
}

type post struct {
	kind  models.EntityType
	id    string
	owner string
}

// Factory builds single documents and persists them.
type Factory struct {
	repo  repository.DocumentRepository
	opts  Options
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewFactory creates a Factory writing to repo.
func NewFactory(repo repository.DocumentRepository, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	return &Factory{repo: repo, opts: opts, faker: gofakeit.New(seed), now: time.Now}
}

func (f *Factory) pick(ids []string) string {
	return ids[f.faker.Number(0, len(ids)-1)]
}

// subset returns up to n distinct ids from ids, excluding skip.
func (f *Factory) subset(ids []string, n int, skip string) []string {
	out := []string{}
	if n <= 0 {
		return out
	}
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	f.faker.ShuffleStrings(shuffled)
	for _, id := range shuffled {
		if len(out) == n {
			break
		}
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return f.now().Add(-back).UTC()
}

func (f *Factory) create(ctx context.Context, c models.Collection, doc any, dest any) error {
	fields, err := models.ToFields(doc)
	if err != nil {
		return err
	}
	if fields.ID() == "" {
		fields["id"] = f.faker.UUID()
	}
	stored, err := f.repo.Create(ctx, c.String(), fields)
	if err != nil {
		return fmt.Errorf("seed %s: %w", c, err)
	}
	return stored.Decode(dest)
}

// CreateUser persists a user with no follow edges.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (models.User, error) {
	first := f.faker.FirstName()
	last := f.faker.LastName()
	u := models.User{
		Username:     strings.ToLower(first) + fmt.Sprintf("%d", f.faker.Number(100, 999)),
		DisplayName:  first + " " + last,
		Avatar:       fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Bio:          truncate(f.faker.Sentence(10), 160),
		FollowingIDs: []string{},
		FollowerIDs:  []string{},
		CreatedAt:    f.createdAt(),
	}
	for _, o := range overrides {
		o(&u)
	}
	var out models.User
	err := f.create(ctx, models.CollectionUsers, u, &out)
	return out, err
}

// CreateFollowMesh has each user follow up to FollowsPerUser others. Edges are
// written transactionally, so both sides always agree.
func (f *Factory) CreateFollowMesh(ctx context.Context, users []string) (int, error) {
	created := 0
	for _, actor := range users {
		n := f.faker.Number(0, f.opts.FollowsPerUser)
		for _, target := range f.subset(users, n, actor) {
			edge, err := f.repo.SetFollow(ctx, actor, target, true)
			if err != nil {
				return created, fmt.Errorf("seed follow %s -> %s: %w", actor, target, err)
			}
			if edge.Changed {
				created++
			}
		}
	}
	return created, nil
}

// CreateMusic persists a soundtrack.
func (f *Factory) CreateMusic(ctx context.Context) (models.Music, error) {
	m := models.Music{
		Title:           strings.TrimSuffix(f.faker.Sentence(3), "."),
		Artist:          f.faker.Name(),
		URL:             fmt.Sprintf("https://cdn.example.com/music/%s.mp3", f.faker.UUID()),
		DurationSeconds: f.faker.Number(30, 240),
		CreatedAt:       f.createdAt(),
	}
	var out models.Music
	err := f.create(ctx, models.CollectionMusic, m, &out)
	return out, err
}

// CreateVideo persists a video owned by owner, liked by a few of likers.
func (f *Factory) CreateVideo(ctx context.Context, owner string, music, likers []string) (models.Video, error) {
	key := f.faker.UUID()
	liked := f.subset(likers, f.faker.Number(0, min(len(likers), 8)), "")
	v := models.Video{
		UserID:       owner,
		VideoURL:     fmt.Sprintf("https://cdn.example.com/videos/%s.mp4", key),
		ThumbnailURL: fmt.Sprintf("https://picsum.photos/seed/%s/540/960", key),
		Caption:      f.faker.Sentence(8),
		Likes:        models.Likes{LikedBy: liked, LikeCount: len(liked)},
		CreatedAt:    f.createdAt(),
	}
	if len(music) > 0 && f.faker.Bool() {
		v.MusicID = f.pick(music)
	}
	var out models.Video
	err := f.create(ctx, models.CollectionVideos, v, &out)
	return out, err
}

// CreateImage persists an image owned by owner, liked by a few of likers.
func (f *Factory) CreateImage(ctx context.Context, owner string, likers []string) (models.Image, error) {
	liked := f.subset(likers, f.faker.Number(0, min(len(likers), 8)), "")
	img := models.Image{
		UserID:    owner,
		ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()),
		Caption:   f.faker.Sentence(6),
		Likes:     models.Likes{LikedBy: liked, LikeCount: len(liked)},
		CreatedAt: f.createdAt(),
	}
	var out models.Image
	err := f.create(ctx, models.CollectionImages, img, &out)
	return out, err
}

// CreateThread adds comments and replies to one post and sets the post's
// commentCount and each comment's replyCount to match. It returns how many
// comments were written.
func (f *Factory) CreateThread(ctx context.Context, kind models.EntityType, entityID string, authors []string) (int, error) {
	collection, ok := kind.Collection()
	if !ok {
		return 0, fmt.Errorf("seed thread: unknown entity type %q", kind)
	}
	total := 0
	base := f.createdAt()
	for i := range f.faker.Number(0, f.opts.CommentsPerPost) {
		at := base.Add(time.Duration(i) * time.Hour)
		top, err := f.createComment(ctx, kind, entityID, nil, f.pick(authors), at, authors)
		if err != nil {
			return total, err
		}
		total++

		replies := f.faker.Number(0, f.opts.RepliesPerComment)
		for j := range replies {
			parent := top.ID
			if _, err := f.createComment(ctx, kind, entityID, &parent, f.pick(authors),
				at.Add(time.Duration(j+1)*time.Minute), authors); err != nil {
				return total, err
			}
			total++
		}
		if replies > 0 {
			if _, err := f.repo.Patch(ctx, models.CollectionComments.String(), top.ID,
				models.Fields{"replyCount": replies}); err != nil {
				return total, err
			}
		}
	}
	if _, err := f.repo.Patch(ctx, collection.String(), entityID, models.Fields{"commentCount": total}); err != nil {
		return total, err
	}
	return total, nil
}

func (f *Factory) createComment(ctx context.Context, kind models.EntityType, entityID string, parentID *string,
	author string, at time.Time, likers []string) (models.Comment, error) {
	liked := f.subset(likers, f.faker.Number(0, min(len(likers), 3)), "")
	c := models.Comment{
		EntityID:   entityID,
		EntityType: kind,
		ParentID:   parentID,
		AuthorID:   author,
		Content:    f.faker.Sentence(f.faker.Number(3, 14)),
		Likes:      models.Likes{LikedBy: liked, LikeCount: len(liked)},
		CreatedAt:  at,
	}
	var out models.Comment
	err := f.create(ctx, models.CollectionComments, c, &out)
	return out, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
