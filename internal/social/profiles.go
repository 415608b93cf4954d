package social

import (
	"context"
	"errors"
	"sync"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"
	"reelshare/internal/validation"

	"golang.org/x/sync/errgroup"
)

// Placeholder profile values used when an author cannot be fetched.
const (
	UnknownDisplayName = "Unknown"
	PlaceholderAvatar  = "https://ui-avatars.com/api/?name=Unknown"
)

// Placeholder returns the stand-in profile for a user that could not be loaded.
func Placeholder(userID string) models.User {
	return models.User{
		ID:           userID,
		Username:     "unknown",
		DisplayName:  UnknownDisplayName,
		Avatar:       PlaceholderAvatar,
		FollowingIDs: []string{},
		FollowerIDs:  []string{},
	}
}

// Profiles fetches user documents and remembers the last one seen per id.
type Profiles struct {
	api         *apiclient.Client
	concurrency int

	mu   sync.RWMutex
	seen map[string]models.User
}

// NewProfiles creates a Profiles that runs at most concurrency fetches at once.
func NewProfiles(api *apiclient.Client, concurrency int) *Profiles {
	return &Profiles{api: api, concurrency: concurrency, seen: make(map[string]models.User)}
}

// Get fetches one profile. A missing user yields a placeholder and no error;
// any other failure yields a placeholder and the error.
func (p *Profiles) Get(ctx context.Context, userID string) (models.User, error) {
	u, err := apiclient.Get[models.User](ctx, p.api, models.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, apiclient.ErrNotFound) {
			return Placeholder(userID), nil
		}
		return Placeholder(userID), err
	}
	p.remember(u)
	return u, nil
}

// GetMany fetches each distinct id once, concurrently. Failures degrade to
// placeholders and never fail the batch.
func (p *Profiles) GetMany(ctx context.Context, ids []string) map[string]models.User {
	out := make(map[string]models.User, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			u, err := p.Get(gctx, id)
			if err != nil {
				observability.LogAsyncOperationError(ctx, "fetch_profile", err, map[string]interface{}{"user_id": id})
			}
			mu.Lock()
			out[id] = u
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Cached returns the last fetched profile for userID, or a placeholder.
func (p *Profiles) Cached(userID string) models.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if u, ok := p.seen[userID]; ok {
		return u
	}
	return Placeholder(userID)
}

func (p *Profiles) remember(u models.User) {
	p.mu.Lock()
	p.seen[u.ID] = u
	p.mu.Unlock()
}

// ProfileUpdate lists the profile fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Avatar      *string
}

// UpdateProfile patches the session user's profile after validating the
// fields locally.
func (p *Profiles) UpdateProfile(ctx context.Context, sess session.Session, upd ProfileUpdate) (models.User, error) {
	if err := requireSession(sess); err != nil {
		return models.User{}, err
	}
	fields := map[string]any{}
	if upd.DisplayName != nil {
		if err := validation.ValidateDisplayName(*upd.DisplayName); err != nil {
			return models.User{}, models.NewValidationError(err.Error())
		}
		fields["displayName"] = *upd.DisplayName
	}
	if upd.Bio != nil {
		if err := validation.ValidateBio(*upd.Bio); err != nil {
			return models.User{}, models.NewValidationError(err.Error())
		}
		fields["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		if err := validation.ValidateMediaURL(*upd.Avatar); err != nil {
			return models.User{}, models.NewValidationError(err.Error())
		}
		fields["avatar"] = *upd.Avatar
	}
	if len(fields) == 0 {
		return models.User{}, models.NewValidationError("nothing to update")
	}

	u, err := apiclient.Patch[models.User](sess.Context(ctx), p.api, models.CollectionUsers, sess.UserID, fields)
	if err != nil {
		return models.User{}, err
	}
	p.remember(u)
	return u, nil
}
