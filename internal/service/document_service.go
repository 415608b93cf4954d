// Package service holds the business rules applied on top of the document store.
package service

import (
	"context"
	"strings"
	"time"

	"reelshare/internal/cache"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/repository"
	"reelshare/internal/validation"

	"github.com/google/uuid"
)

const maxCommentLen = validation.MaxCommentLength

// EventPublisher fans document change events out to subscribers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt models.Event, toUserID string) error
}

// DocumentService validates collection requests, assigns ids, keeps the
// cache coherent and publishes change events.
type DocumentService struct {
	repo   repository.DocumentRepository
	cache  *cache.Cache
	events EventPublisher
	now    func() time.Time
	newID  func() string
}

// NewDocumentService creates a DocumentService. cache and events may be nil.
func NewDocumentService(repo repository.DocumentRepository, c *cache.Cache, events EventPublisher) *DocumentService {
	return &DocumentService{
		repo:   repo,
		cache:  c,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func parseCollection(name string) (models.Collection, error) {
	c, ok := models.ParseCollection(name)
	if !ok {
		return "", models.NewNotFoundError("collection", name)
	}
	return c, nil
}

func (s *DocumentService) List(ctx context.Context, collection string, q repository.Query) ([]models.Fields, error) {
	c, err := parseCollection(collection)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, c.String(), q)
}

func (s *DocumentService) Get(ctx context.Context, collection, id string) (models.Fields, error) {
	c, err := parseCollection(collection)
	if err != nil {
		return nil, err
	}
	var doc models.Fields
	err = s.cache.Aside(ctx, cache.DocumentKey(c.String(), id), &doc, cache.DocumentTTL, func() error {
		fetched, err := s.repo.Get(ctx, c.String(), id)
		if err != nil {
			return err
		}
		doc = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Create stores body as a new document. The server assigns a UUID when the
// body carries no id and stamps createdAt when absent.
func (s *DocumentService) Create(ctx context.Context, collection string, body models.Fields) (models.Fields, error) {
	c, err := parseCollection(collection)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, models.NewValidationError("request body must be a JSON object")
	}

	switch id := body["id"].(type) {
	case nil:
		body["id"] = s.newID()
	case string:
		if strings.TrimSpace(id) == "" {
			body["id"] = s.newID()
		}
	default:
		return nil, models.NewValidationError("id must be a string")
	}
	if _, ok := body["createdAt"]; !ok {
		body["createdAt"] = s.now().Format(time.RFC3339Nano)
	}
	applyDefaults(c, body)
	if err := validateCreate(c, body); err != nil {
		return nil, err
	}

	doc, err := s.repo.Create(ctx, c.String(), body)
	if err != nil {
		return nil, err
	}

	toUser := ""
	eventType := models.EventDocumentCreated
	if c == models.CollectionNotifications {
		toUser, _ = doc["toUserId"].(string)
		eventType = models.EventNotificationCreated
	}
	s.publish(ctx, eventType, c.String(), doc.ID(), doc, toUser)
	return doc, nil
}

// Patch shallow-merges fields into the stored document.
func (s *DocumentService) Patch(ctx context.Context, collection, id string, fields models.Fields) (models.Fields, error) {
	c, err := parseCollection(collection)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("patch body must contain at least one field")
	}
	if err := validatePatch(c, fields); err != nil {
		return nil, err
	}

	doc, err := s.repo.Patch(ctx, c.String(), id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDocument(ctx, c.String(), id)
	s.publish(ctx, models.EventDocumentUpdated, c.String(), id, doc, "")
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, collection, id string) error {
	c, err := parseCollection(collection)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c.String(), id); err != nil {
		return err
	}
	s.cache.InvalidateDocument(ctx, c.String(), id)
	s.publish(ctx, models.EventDocumentDeleted, c.String(), id, nil, "")
	return nil
}

// Increment atomically adds delta to a counter field, clamped at zero.
func (s *DocumentService) Increment(ctx context.Context, collection, id, field string, delta int64) (models.Fields, error) {
	c, err := parseCollection(collection)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, models.NewValidationError("delta must be non-zero")
	}
	doc, err := s.repo.Increment(ctx, c.String(), id, field, delta)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDocument(ctx, c.String(), id)
	s.publish(ctx, models.EventDocumentUpdated, c.String(), id, doc, "")
	return doc, nil
}

// SetFollow adds or removes the follow edge on both users in one transaction.
func (s *DocumentService) SetFollow(ctx context.Context, actorID, targetID string, follow bool) (*repository.FollowEdge, error) {
	edge, err := s.repo.SetFollow(ctx, actorID, targetID, follow)
	if err != nil {
		return nil, err
	}
	if edge.Changed {
		users := models.CollectionUsers.String()
		for id, doc := range map[string]models.Fields{actorID: edge.Actor, targetID: edge.Target} {
			s.cache.InvalidateDocument(ctx, users, id)
			s.publish(ctx, models.EventDocumentUpdated, users, id, doc, "")
		}
	}
	return edge, nil
}

func (s *DocumentService) publish(ctx context.Context, eventType, collection, id string, doc models.Fields, toUserID string) {
	if s.events == nil {
		return
	}
	evt, err := models.NewEvent(eventType, collection, id, doc)
	if err == nil {
		err = s.events.PublishEvent(ctx, evt, toUserID)
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, "publish_event", err, map[string]interface{}{
			"collection": collection,
			"id":         id,
			"type":       eventType,
		})
	}
}

func applyDefaults(c models.Collection, body models.Fields) {
	setDefault := func(key string, v any) {
		if _, ok := body[key]; !ok {
			body[key] = v
		}
	}
	if c.Likeable() {
		setDefault("likedBy", []string{})
		setDefault("likeCount", 0)
	}
	switch c {
	case models.CollectionVideos, models.CollectionImages:
		setDefault("commentCount", 0)
	case models.CollectionComments:
		setDefault("parentId", nil)
		setDefault("replyCount", 0)
	case models.CollectionUsers:
		setDefault("followingIds", []string{})
		setDefault("followerIds", []string{})
	case models.CollectionNotifications:
		setDefault("isRead", false)
	}
}

func validateCreate(c models.Collection, body models.Fields) error {
	switch c {
	case models.CollectionComments:
		content, _ := body["content"].(string)
		if _, err := validation.ValidateCommentContent(content); err != nil {
			return models.NewValidationError(err.Error())
		}
		if err := requireStrings(body, "entityId", "authorId"); err != nil {
			return err
		}
		entityType, _ := body["entityType"].(string)
		if _, ok := models.EntityType(entityType).Collection(); !ok {
			return models.NewValidationError("entityType must be video or image")
		}
	case models.CollectionNotifications:
		if err := requireStrings(body, "toUserId", "fromUserId", "type"); err != nil {
			return err
		}
		switch models.NotificationType(body["type"].(string)) {
		case models.NotificationLike, models.NotificationComment, models.NotificationReply, models.NotificationFollow:
		default:
			return models.NewValidationError("unknown notification type")
		}
	case models.CollectionVideos, models.CollectionImages:
		if err := requireStrings(body, "userId"); err != nil {
			return err
		}
	case models.CollectionUsers:
		if username, _ := body["username"].(string); username != "" {
			if err := validation.ValidateUsername(username); err != nil {
				return models.NewValidationError(err.Error())
			}
		}
	}
	return validatePatch(c, body)
}

func validatePatch(c models.Collection, fields models.Fields) error {
	lists := []string{}
	if c.Likeable() {
		lists = append(lists, "likedBy")
	}
	if c == models.CollectionUsers {
		lists = append(lists, "followingIds", "followerIds")
	}
	for _, key := range lists {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if !isStringList(v) {
			return models.NewValidationError(key + " must be a list of user ids")
		}
	}
	if c == models.CollectionUsers {
		if name, ok := fields["displayName"].(string); ok {
			if err := validation.ValidateDisplayName(name); err != nil {
				return models.NewValidationError(err.Error())
			}
		}
		if bio, ok := fields["bio"].(string); ok {
			if err := validation.ValidateBio(bio); err != nil {
				return models.NewValidationError(err.Error())
			}
		}
	}
	if caption, ok := fields["caption"].(string); ok {
		if err := validation.ValidateCaption(caption); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

func requireStrings(body models.Fields, keys ...string) error {
	for _, key := range keys {
		if s, _ := body[key].(string); strings.TrimSpace(s) == "" {
			return models.NewValidationError(key + " is required")
		}
	}
	return nil
}

func isStringList(v any) bool {
	switch list := v.(type) {
	case []string:
		return true
	case []any:
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}
