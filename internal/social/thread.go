package social

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"
	"reelshare/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// PendingPrefix marks the id of a comment that has not been stored yet.
const PendingPrefix = "pending:"

// ThreadComment is a comment as presented: with its author, the viewer's
// like state and, for top-level comments, its replies.
type ThreadComment struct {
	models.Comment
	Author  models.User     `json:"author"`
	IsLiked bool            `json:"isLiked"`
	Pending bool            `json:"pending,omitempty"`
	Replies []ThreadComment `json:"replies,omitempty"`
}

type node struct {
	comment models.Comment
	author  models.User
	pending bool
	replies []*node
}

type entityDoc struct {
	UserID       string `json:"userId"`
	CommentCount int    `json:"commentCount"`
}

// Thread is the two-level comment tree of one video or image.
type Thread struct {
	EntityType models.EntityType
	EntityID   string

	sc          *Client
	collection  models.Collection
	unsubscribe func()

	mu           sync.Mutex
	viewer       string
	ownerID      string
	commentCount int
	top          []*node
	orphans      []*node
	index        map[string]*node
}

func newThread(sc *Client, entityType models.EntityType, entityID string) (*Thread, error) {
	collection, ok := entityType.Collection()
	if !ok {
		return nil, models.NewValidationError("comments belong to a video or an image")
	}
	if entityID == "" {
		return nil, models.NewValidationError("an entity id is required")
	}
	t := &Thread{
		EntityType: entityType,
		EntityID:   entityID,
		sc:         sc,
		collection: collection,
		index:      make(map[string]*node),
	}
	t.unsubscribe = sc.Likes.Subscribe(t.mirrorLike)
	return t, nil
}

// Close stops mirroring like changes into the thread.
func (t *Thread) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

func (t *Thread) mirrorLike(ref Ref, entry LikeEntry) {
	if ref.Collection != models.CollectionComments {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.index[ref.ID]; ok {
		n.comment.Likes = entry.Likes
	}
}

// Load fetches the entity's comments and their authors and rebuilds the tree.
// On failure the previous tree is kept.
func (t *Thread) Load(ctx context.Context, sess session.Session) (err error) {
	if err := requireSession(sess); err != nil {
		return err
	}
	ctx = sess.Context(ctx)
	ctx, span := observability.StartInternalSpan(ctx, "social.LoadThread",
		attribute.String("reelshare.entity_type", string(t.EntityType)),
		attribute.String("reelshare.entity_id", t.EntityID),
	)
	defer func() { observability.EndSpan(span, err) }()

	var comments []models.Comment
	var entity entityDoc
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		comments, err = apiclient.List[models.Comment](gctx, t.sc.API, models.CollectionComments,
			apiclient.Where("entityId", t.EntityID).And("entityType", string(t.EntityType)))
		return err
	})
	g.Go(func() error {
		doc, err := apiclient.Get[entityDoc](gctx, t.sc.API, t.collection, t.EntityID)
		if err != nil && !errors.Is(err, apiclient.ErrNotFound) {
			observability.LogAsyncOperationError(gctx, "fetch_comment_entity", err, map[string]interface{}{
				"collection": t.collection.String(),
				"id":         t.EntityID,
			})
		}
		entity = doc
		return nil
	})
	if err = g.Wait(); err != nil {
		observability.Logger.WarnContext(ctx, "comment load failed", "entity_id", t.EntityID, "error", err.Error())
		return err
	}

	authors := make([]string, 0, len(comments))
	for _, c := range comments {
		authors = append(authors, c.AuthorID)
	}
	profiles := t.sc.Profiles.GetMany(ctx, authors)

	top, orphans, index := buildTree(comments, profiles)

	t.mu.Lock()
	t.viewer = sess.UserID
	t.ownerID = entity.UserID
	t.commentCount = entity.CommentCount
	t.top, t.orphans, t.index = top, orphans, index
	t.mu.Unlock()

	for _, c := range comments {
		t.sc.Likes.Track(Ref{Collection: models.CollectionComments, ID: c.ID}, c.AuthorID, c.Likes)
	}
	return nil
}

// buildTree partitions comments, given in creation order, into newest-first
// top-level nodes with replies in creation order. Replies whose parent is
// not among the top-level comments are returned as orphans.
func buildTree(comments []models.Comment, profiles map[string]models.User) (top, orphans []*node, index map[string]*node) {
	index = make(map[string]*node, len(comments))
	parents := make(map[string]*node)
	for _, c := range comments {
		c.Likes = c.Likes.Normalized()
		n := &node{comment: c, author: profileOrPlaceholder(profiles, c.AuthorID)}
		index[c.ID] = n
		if !c.IsReply() {
			top = append(top, n)
			parents[c.ID] = n
		}
	}
	for _, c := range comments {
		if !c.IsReply() {
			continue
		}
		n := index[c.ID]
		if parent, ok := parents[*c.ParentID]; ok {
			parent.replies = append(parent.replies, n)
		} else {
			orphans = append(orphans, n)
		}
	}
	slices.Reverse(top)
	return top, orphans, index
}

func profileOrPlaceholder(profiles map[string]models.User, id string) models.User {
	if u, ok := profiles[id]; ok {
		return u
	}
	return Placeholder(id)
}

// Comments returns a snapshot of the top-level comments, newest first.
func (t *Thread) Comments() []ThreadComment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot(t.top, true)
}

// Orphans returns replies whose parent is no longer in the thread.
func (t *Thread) Orphans() []ThreadComment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot(t.orphans, false)
}

// CommentCount is the entity's commentCount as last reported by the server.
func (t *Thread) CommentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commentCount
}

// Find returns the comment with id, wherever it sits in the thread.
func (t *Thread) Find(id string) (ThreadComment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.index[id]
	if !ok {
		return ThreadComment{}, false
	}
	return t.view(n, true), true
}

func (t *Thread) snapshot(nodes []*node, withReplies bool) []ThreadComment {
	out := make([]ThreadComment, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, t.view(n, withReplies))
	}
	return out
}

func (t *Thread) view(n *node, withReplies bool) ThreadComment {
	tc := ThreadComment{
		Comment: n.comment,
		Author:  n.author,
		IsLiked: n.comment.Likes.IsLikedBy(t.viewer),
		Pending: n.pending,
	}
	tc.LikedBy = slices.Clone(n.comment.LikedBy)
	if withReplies {
		tc.Replies = t.snapshot(n.replies, false)
	}
	return tc
}

// Add posts a comment, or a reply when parentID is set. The comment shows up
// in the thread at once under a pending id and is replaced by the stored
// record when the server answers. On failure the thread is reloaded; if that
// fails too the pending comment is removed.
func (t *Thread) Add(ctx context.Context, sess session.Session, content, parentID string) (created models.Comment, err error) {
	if err := requireSession(sess); err != nil {
		return models.Comment{}, err
	}
	text, verr := validation.ValidateCommentContent(content)
	if verr != nil {
		return models.Comment{}, models.NewValidationError(verr.Error())
	}
	actor := sess.UserID

	pending := &node{
		comment: models.Comment{
			ID:         PendingPrefix + uuid.NewString(),
			EntityID:   t.EntityID,
			EntityType: t.EntityType,
			AuthorID:   actor,
			Content:    text,
			Likes:      models.Likes{LikedBy: []string{}},
			CreatedAt:  time.Now().UTC(),
		},
		author:  t.sc.Profiles.Cached(actor),
		pending: true,
	}

	t.mu.Lock()
	var parent *node
	if parentID != "" {
		parent = t.index[parentID]
		if parent == nil || parent.pending || !slices.Contains(t.top, parent) {
			t.mu.Unlock()
			if parent != nil && parent.comment.IsReply() {
				return models.Comment{}, models.NewValidationError("replies cannot be nested")
			}
			return models.Comment{}, models.NewValidationError("reply target is not a comment in this thread")
		}
		pid := parentID
		pending.comment.ParentID = &pid
		parent.replies = append(parent.replies, pending)
	} else {
		t.top = append([]*node{pending}, t.top...)
	}
	t.index[pending.comment.ID] = pending
	var parentAuthor string
	if parent != nil {
		parentAuthor = parent.comment.AuthorID
	}
	owner := t.ownerID
	t.mu.Unlock()

	ctx = sess.Context(ctx)
	ctx, span := observability.StartInternalSpan(ctx, "social.AddComment",
		attribute.String("reelshare.entity_id", t.EntityID),
		attribute.Bool("reelshare.reply", parent != nil),
	)
	defer func() { observability.EndSpan(span, err) }()

	var parentRef any
	if parent != nil {
		parentRef = parentID
	}
	created, err = apiclient.Create[models.Comment](ctx, t.sc.API, models.CollectionComments, map[string]any{
		"entityId":   t.EntityID,
		"entityType": t.EntityType,
		"parentId":   parentRef,
		"authorId":   actor,
		"content":    text,
		"likedBy":    []string{},
		"likeCount":  0,
		"replyCount": 0,
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "comment create failed, resynchronizing", "entity_id", t.EntityID, "error", err.Error())
		if lerr := t.Load(ctx, sess); lerr != nil {
			t.removePending(pending)
		}
		return models.Comment{}, err
	}
	created.Likes = created.Likes.Normalized()

	t.mu.Lock()
	t.settlePending(pending, created)
	t.mu.Unlock()
	t.sc.Likes.Track(Ref{Collection: models.CollectionComments, ID: created.ID}, actor, created.Likes)

	bg := context.WithoutCancel(ctx)
	if parent != nil {
		if n := bumpCounter(bg, t.sc.API, t.sc.flags, actor, models.CollectionComments, parentID, "replyCount", 1); n >= 0 {
			t.mu.Lock()
			parent.comment.ReplyCount = n
			t.mu.Unlock()
		}
	}
	if n := bumpCounter(bg, t.sc.API, t.sc.flags, actor, t.collection, t.EntityID, "commentCount", 1); n >= 0 {
		t.mu.Lock()
		t.commentCount = n
		t.mu.Unlock()
	}

	if parent != nil {
		_ = t.sc.Notifications.Notify(bg, actor, parentAuthor, models.NotificationReply, parentID)
	} else {
		_ = t.sc.Notifications.Notify(bg, actor, owner, models.NotificationComment, t.EntityID)
	}
	return created, nil
}

// settlePending swaps the pending node for the stored comment. If a reload
// dropped the pending node meanwhile, the stored comment is inserted fresh.
// Callers hold t.mu.
func (t *Thread) settlePending(pending *node, created models.Comment) {
	if t.index[pending.comment.ID] == pending {
		delete(t.index, pending.comment.ID)
		pending.comment = created
		pending.pending = false
		t.index[created.ID] = pending
		return
	}
	if _, ok := t.index[created.ID]; ok {
		return
	}
	n := &node{comment: created, author: pending.author}
	t.index[created.ID] = n
	if created.IsReply() {
		if parent, ok := t.index[*created.ParentID]; ok && !parent.comment.IsReply() {
			parent.replies = append(parent.replies, n)
			return
		}
		t.orphans = append(t.orphans, n)
		return
	}
	t.top = append([]*node{n}, t.top...)
}

func (t *Thread) removePending(pending *node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index[pending.comment.ID] != pending {
		return
	}
	delete(t.index, pending.comment.ID)
	drop := func(nodes []*node) []*node {
		return slices.DeleteFunc(nodes, func(n *node) bool { return n == pending })
	}
	t.top = drop(t.top)
	for _, n := range t.top {
		n.replies = drop(n.replies)
	}
}

// Delete removes one of the session user's comments, decrements the
// counters it contributed to and reloads the thread.
func (t *Thread) Delete(ctx context.Context, sess session.Session, commentID string) (err error) {
	if err := requireSession(sess); err != nil {
		return err
	}
	if strings.HasPrefix(commentID, PendingPrefix) {
		return models.NewValidationError("comment is still being posted")
	}
	ctx = sess.Context(ctx)

	t.mu.Lock()
	n, ok := t.index[commentID]
	var c models.Comment
	if ok {
		c = n.comment
	}
	t.mu.Unlock()
	if !ok {
		c, err = apiclient.Get[models.Comment](ctx, t.sc.API, models.CollectionComments, commentID)
		if err != nil {
			return err
		}
		if c.EntityID != t.EntityID {
			return models.NewValidationError("comment belongs to another post")
		}
	}
	if c.AuthorID != sess.UserID {
		return models.NewUnauthorizedError("only the author can delete a comment")
	}

	ctx, span := observability.StartInternalSpan(ctx, "social.DeleteComment",
		attribute.String("reelshare.comment_id", commentID),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err = t.sc.API.Delete(ctx, models.CollectionComments, commentID); err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	if c.IsReply() {
		bumpCounter(bg, t.sc.API, t.sc.flags, sess.UserID, models.CollectionComments, *c.ParentID, "replyCount", -1)
	}
	bumpCounter(bg, t.sc.API, t.sc.flags, sess.UserID, t.collection, t.EntityID, "commentCount", -1)

	if err = t.Load(ctx, sess); err != nil {
		return fmt.Errorf("reload comments: %w", err)
	}
	return nil
}

// ToggleLike likes or unlikes a comment in this thread.
func (t *Thread) ToggleLike(ctx context.Context, sess session.Session, commentID string) (LikeResult, error) {
	t.mu.Lock()
	n, ok := t.index[commentID]
	pending := ok && n.pending
	t.mu.Unlock()
	switch {
	case !ok:
		return LikeResult{}, models.NewNotFoundError("Comment", commentID)
	case pending:
		return LikeResult{}, models.NewValidationError("comment is still being posted")
	}
	return t.sc.Likes.Toggle(ctx, sess, Ref{Collection: models.CollectionComments, ID: commentID})
}
