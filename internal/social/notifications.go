package social

import (
	"context"
	"sync/atomic"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"

	"golang.org/x/sync/errgroup"
)

// Notifications creates and reads notification documents.
type Notifications struct {
	api *apiclient.Client
}

// Notify records that fromUserID did something of type typ to targetID owned
// by toUserID. It is skipped for self-actions and unknown owners. Failures are
// logged and returned for callers that care; social flows ignore them.
func (n *Notifications) Notify(ctx context.Context, fromUserID, toUserID string, typ models.NotificationType, targetID string) error {
	if toUserID == "" || fromUserID == toUserID {
		return nil
	}
	_, err := apiclient.Create[models.Notification](ctx, n.api, models.CollectionNotifications, map[string]any{
		"toUserId":   toUserID,
		"fromUserId": fromUserID,
		"type":       typ,
		"targetId":   targetID,
		"isRead":     false,
	})
	if err != nil {
		observability.LogAsyncOperationError(ctx, "create_notification", err, map[string]interface{}{
			"to_user_id": toUserID,
			"type":       string(typ),
			"target_id":  targetID,
		})
	}
	return err
}

// List returns the session user's notifications, newest first.
func (n *Notifications) List(ctx context.Context, sess session.Session) ([]models.Notification, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return apiclient.List[models.Notification](sess.Context(ctx), n.api, models.CollectionNotifications,
		apiclient.Where("toUserId", sess.UserID).SortBy("createdAt", true))
}

// UnreadCount counts the session user's unread notifications.
func (n *Notifications) UnreadCount(ctx context.Context, sess session.Session) (int, error) {
	unread, err := n.unread(ctx, sess)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkRead marks one of the session user's notifications as read.
func (n *Notifications) MarkRead(ctx context.Context, sess session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	ctx = sess.Context(ctx)
	existing, err := apiclient.Get[models.Notification](ctx, n.api, models.CollectionNotifications, id)
	if err != nil {
		return err
	}
	if existing.ToUserID != sess.UserID {
		return models.NewUnauthorizedError("notification belongs to another user")
	}
	if existing.IsRead {
		return nil
	}
	_, err = apiclient.Patch[models.Notification](ctx, n.api, models.CollectionNotifications, id, map[string]any{"isRead": true})
	return err
}

// MarkAllRead marks every unread notification as read and returns how many
// were updated. It stops at the first failure.
func (n *Notifications) MarkAllRead(ctx context.Context, sess session.Session) (int, error) {
	unread, err := n.unread(ctx, sess)
	if err != nil {
		return 0, err
	}
	ctx = sess.Context(ctx)

	var marked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, item := range unread {
		g.Go(func() error {
			if _, err := apiclient.Patch[models.Notification](gctx, n.api, models.CollectionNotifications, item.ID,
				map[string]any{"isRead": true}); err != nil {
				return err
			}
			marked.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(marked.Load()), err
}

func (n *Notifications) unread(ctx context.Context, sess session.Session) ([]models.Notification, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return apiclient.List[models.Notification](sess.Context(ctx), n.api, models.CollectionNotifications,
		apiclient.Where("toUserId", sess.UserID).And("isRead", "false"))
}
