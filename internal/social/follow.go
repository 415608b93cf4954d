package social

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"reelshare/internal/apiclient"
	"reelshare/internal/featureflags"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/optimistic"
	"reelshare/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// FollowResult reports a follow or unfollow.
type FollowResult struct {
	Following bool
	// Changed is false when the edge was already in the requested state.
	Changed bool
	Actor   models.User
	Target  models.User
}

// FollowService maintains follow edges, which live on both user documents.
// Mutations are sequenced per edge. Confirming or rolling back one edge
// leaves the actor's other unconfirmed edges in place.
type FollowService struct {
	api    *apiclient.Client
	notify *Notifications
	flags  Flags
	users  *optimistic.Store[models.User]
	seq    *optimistic.Sequencer

	mu      sync.Mutex
	pending map[followEdge]bool
}

type followEdge struct{ actor, target string }

// NewFollowService creates a FollowService. With flags reporting
// atomic_follow for a user, that user's follows use the transactional edge
// endpoint; otherwise both documents are patched separately.
func NewFollowService(api *apiclient.Client, notify *Notifications, flags Flags) *FollowService {
	return &FollowService{
		api:     api,
		notify:  notify,
		flags:   flags,
		users:   optimistic.NewStore[models.User](),
		seq:     optimistic.NewSequencer(),
		pending: make(map[followEdge]bool),
	}
}

// Track seeds local state with a fetched user.
func (f *FollowService) Track(u models.User) {
	f.users.Seed(u.ID, u)
}

// Local returns the locally known state of userID.
func (f *FollowService) Local(userID string) (models.User, bool) {
	return f.users.Get(userID)
}

// IsFollowing reports whether the session user follows targetID according to
// local state, fetching the session user if it is not tracked yet.
func (f *FollowService) IsFollowing(ctx context.Context, sess session.Session, targetID string) (bool, error) {
	if err := requireSession(sess); err != nil {
		return false, err
	}
	if u, ok := f.users.Get(sess.UserID); ok {
		return u.IsFollowing(targetID), nil
	}
	u, err := apiclient.Get[models.User](sess.Context(ctx), f.api, models.CollectionUsers, sess.UserID)
	if err != nil {
		return false, err
	}
	f.Track(u)
	return u.IsFollowing(targetID), nil
}

// Follow makes the session user follow targetID.
func (f *FollowService) Follow(ctx context.Context, sess session.Session, targetID string) (FollowResult, error) {
	return f.set(ctx, sess, targetID, true)
}

// Unfollow removes the session user's edge to targetID.
func (f *FollowService) Unfollow(ctx context.Context, sess session.Session, targetID string) (FollowResult, error) {
	return f.set(ctx, sess, targetID, false)
}

// Toggle follows or unfollows targetID depending on the current edge.
func (f *FollowService) Toggle(ctx context.Context, sess session.Session, targetID string) (FollowResult, error) {
	following, err := f.IsFollowing(ctx, sess, targetID)
	if err != nil {
		return FollowResult{}, err
	}
	return f.set(ctx, sess, targetID, !following)
}

func (f *FollowService) set(ctx context.Context, sess session.Session, targetID string, follow bool) (res FollowResult, err error) {
	if err := requireSession(sess); err != nil {
		return FollowResult{}, err
	}
	if targetID == "" {
		return FollowResult{}, models.NewValidationError("a target user is required")
	}
	actorID := sess.UserID
	if actorID == targetID {
		return FollowResult{}, models.NewValidationError("users cannot follow themselves")
	}

	if local, ok := f.users.Get(actorID); ok && local.IsFollowing(targetID) == follow {
		return FollowResult{Following: follow, Actor: local}, nil
	}

	ctx = sess.Context(ctx)
	ticket := f.seq.Begin(ctx, actorID+"->"+targetID)
	defer ticket.Done()
	ctx, span := observability.StartInternalSpan(ticket.Context(), "social.SetFollow",
		attribute.String("reelshare.target", targetID),
		attribute.Bool("reelshare.follow", follow),
	)
	defer func() { observability.EndSpan(span, err) }()

	if f.flags != nil && f.flags.Enabled(featureflags.AtomicFollow, actorID) {
		res, err = f.setAtomic(ctx, ticket, actorID, targetID, follow)
	} else {
		res, err = f.setTwoCalls(ctx, ticket, actorID, targetID, follow)
	}
	if err != nil {
		return res, err
	}
	if res.Changed && follow && f.notify != nil {
		_ = f.notify.Notify(context.WithoutCancel(ctx), actorID, targetID, models.NotificationFollow, actorID)
	}
	return res, nil
}

func (f *FollowService) setAtomic(ctx context.Context, ticket *optimistic.Ticket, actorID, targetID string, follow bool) (FollowResult, error) {
	f.applyLocal(actorID, targetID, follow)

	edge, err := f.api.SetFollow(ctx, actorID, targetID, follow)
	if err != nil {
		return FollowResult{}, f.rollback(ctx, ticket, actorID, targetID, err)
	}
	f.confirm(ticket, targetID, edge.Actor)
	return FollowResult{Following: follow, Changed: edge.Changed, Actor: edge.Actor, Target: edge.Target}, nil
}

func (f *FollowService) setTwoCalls(ctx context.Context, ticket *optimistic.Ticket, actorID, targetID string, follow bool) (FollowResult, error) {
	var actor, target models.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		actor, err = apiclient.Get[models.User](gctx, f.api, models.CollectionUsers, actorID)
		return err
	})
	g.Go(func() (err error) {
		target, err = apiclient.Get[models.User](gctx, f.api, models.CollectionUsers, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return FollowResult{}, f.rollback(ctx, ticket, actorID, targetID, err)
	}
	f.confirm(ticket, targetID, actor)

	needActor := actor.IsFollowing(targetID) != follow
	needTarget := target.HasFollower(actorID) != follow
	if !needActor && !needTarget {
		return FollowResult{Following: follow, Actor: actor, Target: target}, nil
	}

	originalFollowing := actor.FollowingIDs
	if needActor {
		f.applyLocal(actorID, targetID, follow)
		updated, err := apiclient.Patch[models.User](ctx, f.api, models.CollectionUsers, actorID, map[string]any{
			"followingIds": withMember(actor.FollowingIDs, targetID, follow),
		})
		if err != nil {
			return FollowResult{}, f.rollback(ctx, ticket, actorID, targetID, err)
		}
		actor = updated
	}

	if needTarget {
		updated, err := apiclient.Patch[models.User](ctx, f.api, models.CollectionUsers, targetID, map[string]any{
			"followerIds": withMember(target.FollowerIDs, actorID, follow),
		})
		if err != nil {
			if !needActor {
				return FollowResult{}, err
			}
			_, cerr := apiclient.Patch[models.User](context.WithoutCancel(ctx), f.api, models.CollectionUsers, actorID,
				map[string]any{"followingIds": nonNil(originalFollowing)})
			rerr := f.rollback(ctx, ticket, actorID, targetID, err)
			if cerr != nil {
				return FollowResult{}, fmt.Errorf("%w: target update: %w; compensation: %w", ErrPartialEdge, rerr, cerr)
			}
			return FollowResult{}, rerr
		}
		target = updated
	}

	f.confirm(ticket, targetID, actor)
	return FollowResult{Following: follow, Changed: true, Actor: actor, Target: target}, nil
}

func (f *FollowService) applyLocal(actorID, targetID string, follow bool) {
	f.mu.Lock()
	f.pending[followEdge{actorID, targetID}] = follow
	f.mu.Unlock()
	f.applyEdge(actorID, targetID, follow)
}

func (f *FollowService) applyEdge(actorID, targetID string, follow bool) {
	f.users.Update(actorID, func(cur models.User, ok bool) models.User {
		if !ok {
			cur = models.User{ID: actorID}
		}
		cur.FollowingIDs = withMember(cur.FollowingIDs, targetID, follow)
		return cur
	})
}

// settle drops the pending edge and returns u with the actor's remaining
// pending edges overlaid.
func (f *FollowService) settle(u models.User, targetID string) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, followEdge{u.ID, targetID})
	overlaid := false
	for e, follow := range f.pending {
		if e.actor == u.ID && u.IsFollowing(e.target) != follow {
			u.FollowingIDs = withMember(u.FollowingIDs, e.target, follow)
			overlaid = true
		}
	}
	return u, overlaid
}

func (f *FollowService) confirm(ticket *optimistic.Ticket, targetID string, u models.User) {
	if !ticket.Current() {
		f.users.SetConfirmed(u.ID, u)
		return
	}
	f.users.Confirm(u.ID, u)
	if cur, overlaid := f.settle(u, targetID); overlaid {
		f.users.Apply(u.ID, cur)
	}
	observability.RecordOutcome("follows", observability.OutcomeConfirmed)
}

func (f *FollowService) rollback(ctx context.Context, ticket *optimistic.Ticket, actorID, targetID string, err error) error {
	if !ticket.Current() {
		observability.RecordOutcome("follows", observability.OutcomeSuperseded)
		return errors.Join(ErrSuperseded, err)
	}
	confirmed, _ := f.users.Confirmed(actorID)
	f.mu.Lock()
	delete(f.pending, followEdge{actorID, targetID})
	f.mu.Unlock()
	f.applyEdge(actorID, targetID, confirmed.IsFollowing(targetID))
	observability.RecordOutcome("follows", observability.OutcomeRolledBack)
	observability.Logger.WarnContext(ctx, "follow change rolled back", "actor", actorID, "error", err.Error())
	return err
}

// withMember returns ids with id present or absent, preserving order and
// never duplicating.
func withMember(ids []string, id string, present bool) []string {
	out := make([]string, 0, len(ids)+1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if present {
		out = append(out, id)
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}
