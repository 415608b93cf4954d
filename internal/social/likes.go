package social

import (
	"context"
	"strings"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/optimistic"
	"reelshare/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// LikeEntry is the local like state of one entity.
type LikeEntry struct {
	OwnerID string
	Likes   models.Likes
}

// LikeResult is like state as seen by one viewer.
type LikeResult struct {
	Ref     Ref
	OwnerID string
	Liked   bool
	Likes   models.Likes
}

// LikeOutcome is delivered once a toggle settles.
type LikeOutcome struct {
	LikeResult
	Err error
}

// likeable decodes the fields every likeable collection shares.
type likeable struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	AuthorID string `json:"authorId"`
	models.Likes
}

func (d likeable) owner() string {
	if d.UserID != "" {
		return d.UserID
	}
	return d.AuthorID
}

// Liker toggles likes on videos, images and comments optimistically.
type Liker struct {
	api    *apiclient.Client
	notify *Notifications
	state  *optimistic.Store[LikeEntry]
	seq    *optimistic.Sequencer
}

// NewLiker creates a Liker. notify may be nil to skip like notifications.
func NewLiker(api *apiclient.Client, notify *Notifications) *Liker {
	return &Liker{
		api:    api,
		notify: notify,
		state:  optimistic.NewStore[LikeEntry](),
		seq:    optimistic.NewSequencer(),
	}
}

// Track seeds local state from a fetched document. The count is derived from
// the set. While a toggle of ref is in flight only the confirmed value moves.
func (l *Liker) Track(ref Ref, ownerID string, likes models.Likes) {
	entry := LikeEntry{OwnerID: ownerID, Likes: likes.Normalized()}
	if l.seq.InFlight(ref.Key()) {
		l.state.SetConfirmed(ref.Key(), entry)
		return
	}
	l.state.Seed(ref.Key(), entry)
}

// State returns the current local state of ref for viewerID.
func (l *Liker) State(ref Ref, viewerID string) (LikeResult, bool) {
	entry, ok := l.state.Get(ref.Key())
	if !ok {
		return LikeResult{Ref: ref}, false
	}
	return entry.view(ref, viewerID), true
}

// Subscribe calls fn after every local change of like state.
func (l *Liker) Subscribe(fn func(Ref, LikeEntry)) func() {
	return l.state.Subscribe(func(key string, v LikeEntry) {
		collection, id, _ := strings.Cut(key, "/")
		fn(Ref{Collection: models.Collection(collection), ID: id}, v)
	})
}

func (e LikeEntry) view(ref Ref, viewerID string) LikeResult {
	return LikeResult{
		Ref:     ref,
		OwnerID: e.OwnerID,
		Liked:   e.Likes.IsLikedBy(viewerID),
		Likes:   e.Likes,
	}
}

// Toggle likes or unlikes ref as the session user and waits for the server.
// On failure the local state is back at the last confirmed value and the
// error is returned. A toggle overtaken by a newer one returns ErrSuperseded.
func (l *Liker) Toggle(ctx context.Context, sess session.Session, ref Ref) (LikeResult, error) {
	p, err := l.begin(ctx, sess, ref)
	if err != nil {
		return LikeResult{Ref: ref}, err
	}
	return l.settle(p)
}

// ToggleAsync applies the toggle locally and returns the optimistic state at
// once. The outcome arrives on the channel, which is closed afterwards.
func (l *Liker) ToggleAsync(ctx context.Context, sess session.Session, ref Ref) (LikeResult, <-chan LikeOutcome, error) {
	p, err := l.begin(ctx, sess, ref)
	if err != nil {
		return LikeResult{Ref: ref}, nil, err
	}
	ch := make(chan LikeOutcome, 1)
	go func() {
		defer close(ch)
		res, err := l.settle(p)
		ch <- LikeOutcome{LikeResult: res, Err: err}
	}()
	return p.next.view(ref, p.actor), ch, nil
}

type pendingToggle struct {
	ref    Ref
	actor  string
	liked  bool
	next   LikeEntry
	ticket *optimistic.Ticket
	parent context.Context
}

func (l *Liker) begin(ctx context.Context, sess session.Session, ref Ref) (*pendingToggle, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !ref.Collection.Likeable() {
		return nil, models.NewValidationError(ref.Collection.String() + " cannot be liked")
	}
	if ref.ID == "" {
		return nil, models.NewValidationError("an id is required")
	}

	ctx = sess.Context(ctx)
	if _, ok := l.state.Get(ref.Key()); !ok {
		doc, err := apiclient.Get[likeable](ctx, l.api, ref.Collection, ref.ID)
		if err != nil {
			return nil, err
		}
		l.Track(ref, doc.owner(), doc.Likes)
	}

	p := &pendingToggle{ref: ref, actor: sess.UserID, parent: ctx}
	p.ticket = l.seq.Begin(ctx, ref.Key())
	p.next = l.state.Update(ref.Key(), func(cur LikeEntry, _ bool) LikeEntry {
		p.liked = !cur.Likes.IsLikedBy(p.actor)
		return LikeEntry{OwnerID: cur.OwnerID, Likes: toggleMember(cur.Likes, p.actor, p.liked)}
	})
	return p, nil
}

func (l *Liker) settle(p *pendingToggle) (result LikeResult, err error) {
	defer p.ticket.Done()
	key := p.ref.Key()
	entity := p.ref.Collection.String()

	ctx, span := observability.StartInternalSpan(p.ticket.Context(), "social.ToggleLike",
		attribute.String("reelshare.collection", entity),
		attribute.String("reelshare.id", p.ref.ID),
		attribute.Bool("reelshare.like", p.liked),
	)
	defer func() { observability.EndSpan(span, err) }()

	updated, err := apiclient.Patch[likeable](ctx, l.api, p.ref.Collection, p.ref.ID, map[string]any{
		"likedBy":   p.next.Likes.LikedBy,
		"likeCount": p.next.Likes.LikeCount,
	})
	if err != nil {
		if !p.ticket.Current() {
			observability.RecordOutcome(entity, observability.OutcomeSuperseded)
			cur, _ := l.State(p.ref, p.actor)
			return cur, ErrSuperseded
		}
		rolled, _ := l.state.Rollback(key)
		observability.RecordOutcome(entity, observability.OutcomeRolledBack)
		observability.Logger.WarnContext(p.parent, "like toggle rolled back",
			"collection", entity, "id", p.ref.ID, "error", err.Error())
		return rolled.view(p.ref, p.actor), err
	}

	owner := updated.owner()
	if owner == "" {
		owner = p.next.OwnerID
	}
	confirmed := LikeEntry{OwnerID: owner, Likes: updated.Likes.Normalized()}
	if !p.ticket.Current() {
		l.state.SetConfirmed(key, confirmed)
		observability.RecordOutcome(entity, observability.OutcomeSuperseded)
		cur, _ := l.State(p.ref, p.actor)
		return cur, ErrSuperseded
	}
	l.state.Confirm(key, confirmed)
	observability.RecordOutcome(entity, observability.OutcomeConfirmed)

	if p.liked && l.notify != nil {
		_ = l.notify.Notify(context.WithoutCancel(p.parent), p.actor, owner, models.NotificationLike, p.ref.ID)
	}
	return confirmed.view(p.ref, p.actor), nil
}

// toggleMember returns likes with actor added or removed and the count
// derived from the resulting set.
func toggleMember(likes models.Likes, actor string, add bool) models.Likes {
	out := make([]string, 0, len(likes.LikedBy)+1)
	for _, id := range likes.LikedBy {
		if id != actor {
			out = append(out, id)
		}
	}
	if add {
		out = append(out, actor)
	}
	return models.Likes{LikedBy: out, LikeCount: len(out)}
}
