// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"reelshare/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix     = "notifications:user:"
	broadcastChannel      = "notifications:broadcast"
	documentChannelPrefix = "documents:"
)

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a notification payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// PublishEvent publishes a document change event on its collection channel.
// Notification creations are also delivered to the recipient's channel.
func (n *Notifier) PublishEvent(ctx context.Context, evt models.Event, toUserID string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	payload := string(b)
	if err := n.rdb.Publish(ctx, DocumentChannel(evt.Collection), payload).Err(); err != nil {
		return err
	}
	if toUserID != "" {
		return n.PublishUser(ctx, toUserID, payload)
	}
	return nil
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	// Wait for the subscription so messages published right after return are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// DocumentChannel derives the Redis channel name for a collection's change events.
func DocumentChannel(collection string) string {
	return documentChannelPrefix + collection
}

// UserFromChannel extracts the user id from a user channel name.
func UserFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, userChannelPrefix)
	return id, ok && id != ""
}
