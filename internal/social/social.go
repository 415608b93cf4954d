// Package social implements the client side of likes, follows, comment
// threads, the combined feed and notifications. Every mutation is applied to
// local state first and reconciled against the collection API afterwards.
package social

import (
	"errors"

	"reelshare/internal/apiclient"
	"reelshare/internal/featureflags"
	"reelshare/internal/models"
	"reelshare/internal/session"
)

var (
	// ErrSuperseded is returned by a mutation whose outcome was discarded
	// because a newer mutation of the same entity started.
	ErrSuperseded = errors.New("superseded by a newer change")
	// ErrPartialEdge means one side of a follow edge was written and the
	// compensating write failed, leaving the edge asymmetric until repaired.
	ErrPartialEdge = errors.New("follow edge left asymmetric")
)

// Flags decides per-user rollouts. *featureflags.Manager satisfies it.
type Flags interface {
	Enabled(name, userID string) bool
}

// DefaultFlags keeps the atomic counter endpoint on and the two-call follow path.
const DefaultFlags = featureflags.ServerCounters + "=on"

// Options configures a Client.
type Options struct {
	Flags Flags
	// ProfileConcurrency bounds concurrent profile fetches when a thread loads.
	ProfileConcurrency int
}

// Client wires the social components to one API client. Components share
// like state, so a like toggled in the feed is visible in a comment thread.
type Client struct {
	API           *apiclient.Client
	Likes         *Liker
	Follows       *FollowService
	Notifications *Notifications
	Profiles      *Profiles

	flags Flags
}

// New builds a Client.
func New(api *apiclient.Client, opts Options) *Client {
	flags := opts.Flags
	if flags == nil {
		flags = featureflags.NewManager(DefaultFlags)
	}
	if opts.ProfileConcurrency <= 0 {
		opts.ProfileConcurrency = 8
	}

	notifications := &Notifications{api: api}
	profiles := NewProfiles(api, opts.ProfileConcurrency)
	likes := NewLiker(api, notifications)
	return &Client{
		API:           api,
		Likes:         likes,
		Follows:       NewFollowService(api, notifications, flags),
		Notifications: notifications,
		Profiles:      profiles,
		flags:         flags,
	}
}

// Thread returns a comment thread for one video or image.
func (c *Client) Thread(entityType models.EntityType, entityID string) (*Thread, error) {
	return newThread(c, entityType, entityID)
}

// Feed returns an empty feed; call Refresh to fill it.
func (c *Client) Feed() *Feed {
	return &Feed{api: c.API, liker: c.Likes}
}

// Ref names a document in a collection.
type Ref struct {
	Collection models.Collection
	ID         string
}

// Key is the ref's identity in local state.
func (r Ref) Key() string { return r.Collection.String() + "/" + r.ID }

func requireSession(sess session.Session) error {
	if !sess.Valid() {
		return models.NewValidationError("an active session is required")
	}
	return nil
}
