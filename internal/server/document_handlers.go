package server

import (
	"time"

	"reelshare/internal/middleware"
	"reelshare/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListDocuments handles GET /api/:collection
func (s *Server) ListDocuments(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	docs, err := s.docService.List(c.UserContext(), c.Params("collection"), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(docs)
}

// GetDocument handles GET /api/:collection/:id
func (s *Server) GetDocument(c *fiber.Ctx) error {
	doc, err := s.docService.Get(c.UserContext(), c.Params("collection"), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// CreateDocument handles POST /api/:collection
func (s *Server) CreateDocument(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return respondError(c, err)
	}
	doc, err := s.docService.Create(c.UserContext(), c.Params("collection"), body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// PatchDocument handles PATCH /api/:collection/:id
func (s *Server) PatchDocument(c *fiber.Ctx) error {
	fields, err := parseBody(c)
	if err != nil {
		return respondError(c, err)
	}
	doc, err := s.docService.Patch(c.UserContext(), c.Params("collection"), c.Params("id"), fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// DeleteDocument handles DELETE /api/:collection/:id
func (s *Server) DeleteDocument(c *fiber.Ctx) error {
	if err := s.docService.Delete(c.UserContext(), c.Params("collection"), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IncrementRequest is the body of POST /api/:collection/:id/increment.
type IncrementRequest struct {
	Field string `json:"field"`
	Delta int64  `json:"delta"`
}

// IncrementField handles POST /api/:collection/:id/increment
func (s *Server) IncrementField(c *fiber.Ctx) error {
	var req IncrementRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	doc, err := s.docService.Increment(c.UserContext(), c.Params("collection"), c.Params("id"), req.Field, req.Delta)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// FollowUser handles PUT /api/users/:id/following/:targetId
func (s *Server) FollowUser(c *fiber.Ctx) error {
	return s.setFollow(c, true)
}

// UnfollowUser handles DELETE /api/users/:id/following/:targetId
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	return s.setFollow(c, false)
}

func (s *Server) setFollow(c *fiber.Ctx, follow bool) error {
	edge, err := s.docService.SetFollow(c.UserContext(), c.Params("id"), c.Params("targetId"), follow)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(edge)
}

// limitSocialWrites rate-limits comment and notification creation per acting user.
func (s *Server) limitSocialWrites() fiber.Handler {
	limits := map[string]fiber.Handler{
		string(models.CollectionComments):      middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"),
		string(models.CollectionNotifications): middleware.RateLimit(s.redis, 60, time.Minute, "create_notification"),
	}
	return func(c *fiber.Ctx) error {
		if limit, ok := limits[c.Params("collection")]; ok {
			return limit(c)
		}
		return c.Next()
	}
}
