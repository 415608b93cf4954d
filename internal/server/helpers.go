package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"reelshare/internal/models"
	"reelshare/internal/notifications"
	"reelshare/internal/repository"

	"github.com/gofiber/fiber/v2"
)

const maxListLimit = 1000

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("Error: %s %s: %v", c.Method(), c.Path(), err)
	}
	return models.RespondWithError(c, status, err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return models.CodeValidation
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	case fiber.StatusForbidden, fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	}
	return models.CodeInternal
}

// parseListQuery turns query parameters into a repository.Query. Parameters
// without a leading underscore are equality filters.
func parseListQuery(c *fiber.Ctx) (repository.Query, error) {
	q := repository.Query{Filters: map[string]string{}}
	for key, value := range c.Queries() {
		switch key {
		case "_sort":
			q.Sort = value
		case "_order":
			switch strings.ToLower(value) {
			case "asc", "":
			case "desc":
				q.Desc = true
			default:
				return q, models.NewValidationError("_order must be asc or desc")
			}
		case "_limit", "_start":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return q, models.NewValidationError(key + " must be a non-negative integer")
			}
			if key == "_limit" {
				q.Limit = min(n, maxListLimit)
			} else {
				q.Offset = n
			}
		default:
			if !strings.HasPrefix(key, "_") {
				q.Filters[key] = value
			}
		}
	}
	return q, nil
}

func parseBody(c *fiber.Ctx) (models.Fields, error) {
	body, err := models.DecodeFields(c.Body())
	if err != nil {
		return nil, models.NewValidationError("request body must be a JSON object")
	}
	return body, nil
}

// eventFanout routes change events through Redis when it is available,
// otherwise straight to this process's websocket hub.
type eventFanout struct {
	notifier *notifications.Notifier
	hub      *notifications.Hub
	viaRedis bool
}

func (f *eventFanout) PublishEvent(ctx context.Context, evt models.Event, toUserID string) error {
	if f.viaRedis {
		return f.notifier.PublishEvent(ctx, evt, toUserID)
	}
	if toUserID == "" {
		return nil
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	f.hub.Broadcast(toUserID, string(b))
	return nil
}
