package social

import (
	"context"
	"slices"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"
)

// RepairReport lists what RepairEdges corrected.
type RepairReport struct {
	// Outgoing are targets whose followerIds were fixed to match the actor's followingIds.
	Outgoing []string
	// Incoming are followers whose entry in the actor's followerIds was added or removed.
	Incoming []string
	// Dangling are ids in the actor's lists that no longer exist.
	Dangling []string
}

// Changed reports whether anything was written.
func (r RepairReport) Changed() bool {
	return len(r.Outgoing)+len(r.Incoming)+len(r.Dangling) > 0
}

// RepairEdges makes every follow edge touching the session user symmetric.
// For edges the actor owns, the actor's followingIds decide; for edges into
// the actor, each follower's followingIds decide.
func (f *FollowService) RepairEdges(ctx context.Context, sess session.Session) (RepairReport, error) {
	var report RepairReport
	if err := requireSession(sess); err != nil {
		return report, err
	}
	ctx = sess.Context(ctx)
	actorID := sess.UserID

	users, err := apiclient.List[models.User](ctx, f.api, models.CollectionUsers, apiclient.Filter{})
	if err != nil {
		return report, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	actor, ok := byID[actorID]
	if !ok {
		return report, models.NewNotFoundError("User", actorID)
	}

	following := make([]string, 0, len(actor.FollowingIDs))
	for _, id := range actor.FollowingIDs {
		if _, exists := byID[id]; !exists || id == actorID {
			report.Dangling = append(report.Dangling, id)
			continue
		}
		following = append(following, id)
	}

	for _, u := range users {
		if u.ID == actorID {
			continue
		}
		want := slices.Contains(following, u.ID)
		if u.HasFollower(actorID) == want {
			continue
		}
		if _, err := apiclient.Patch[models.User](ctx, f.api, models.CollectionUsers, u.ID, map[string]any{
			"followerIds": withMember(u.FollowerIDs, actorID, want),
		}); err != nil {
			return report, err
		}
		report.Outgoing = append(report.Outgoing, u.ID)
		observability.FollowEdgeRepairs.WithLabelValues("outgoing").Inc()
	}

	followers := make([]string, 0, len(actor.FollowerIDs))
	for _, id := range actor.FollowerIDs {
		u, exists := byID[id]
		switch {
		case !exists || id == actorID:
			report.Dangling = append(report.Dangling, id)
		case !u.IsFollowing(actorID):
			report.Incoming = append(report.Incoming, id)
			observability.FollowEdgeRepairs.WithLabelValues("incoming").Inc()
		default:
			followers = append(followers, id)
		}
	}
	for _, u := range users {
		if u.ID != actorID && u.IsFollowing(actorID) && !slices.Contains(followers, u.ID) {
			followers = append(followers, u.ID)
			report.Incoming = append(report.Incoming, u.ID)
			observability.FollowEdgeRepairs.WithLabelValues("incoming").Inc()
		}
	}

	if len(following) != len(actor.FollowingIDs) || !slices.Equal(followers, actor.FollowerIDs) {
		updated, err := apiclient.Patch[models.User](ctx, f.api, models.CollectionUsers, actorID, map[string]any{
			"followingIds": nonNil(following),
			"followerIds":  nonNil(followers),
		})
		if err != nil {
			return report, err
		}
		f.Track(updated)
	} else {
		f.Track(actor)
	}
	return report, nil
}
