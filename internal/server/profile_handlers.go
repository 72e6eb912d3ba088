package server

import (
	"context"

	"askbox/internal/models"
	"askbox/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profiles/:id
// @Summary Get a profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Param expand query []string false "Relations to inline: posts, managers, following, followers, likes" collectionFormat(multi)
// @Param profile query string false "Viewer profile for relationship flags"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	expand, err := s.profileExpand(c)
	if err != nil {
		return nil
	}
	profile, err := s.profileService.Get(c.UserContext(), c.Params("id"), expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	if err := s.annotate(c, profile); err != nil {
		return nil
	}
	return c.JSON(profile)
}

// CreateProfile handles POST /api/profiles
// @Summary Create a profile managed by the caller
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{tag=string,name=string} true "New profile"
// @Success 201 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /profiles [post]
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	expand, err := s.profileExpand(c)
	if err != nil {
		return nil
	}

	var req struct {
		Tag  string `json:"tag"`
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.Create(c.UserContext(), service.CreateProfileInput{
		OwnerID: userID,
		Tag:     req.Tag,
		Name:    req.Name,
	}, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateProfile handles PATCH /api/profiles/:id
// @Summary Update a profile's tag or name
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param request body object{tag=string,name=string} true "Fields to change"
// @Success 200 {object} models.Profile
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /profiles/{id} [patch]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.requireProfile(c, id); err != nil {
		return nil
	}
	expand, err := s.profileExpand(c)
	if err != nil {
		return nil
	}

	var req struct {
		Tag  *string `json:"tag"`
		Name *string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.Update(c.UserContext(), service.UpdateProfileInput{
		ID:   id,
		Tag:  req.Tag,
		Name: req.Name,
	}, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// DeleteProfile handles DELETE /api/profiles/:id
// @Summary Delete a profile with its posts, questions and follow edges
// @Tags profiles
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [delete]
func (s *Server) DeleteProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.requireProfile(c, id); err != nil {
		return nil
	}
	if _, err := s.profileService.Delete(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	if s.feedHub != nil {
		s.feedHub.Close(id)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFollowers handles GET /api/profiles/:id/followers
// @Summary List profiles following a profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Param expand query []string false "Relations to inline on each follower" collectionFormat(multi)
// @Param profile query string false "Viewer profile for relationship flags"
// @Success 200 {array} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	expand, err := s.profileExpand(c)
	if err != nil {
		return nil
	}
	profiles, err := s.profileService.GetFollowers(c.UserContext(), c.Params("id"), expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	if err := s.annotate(c, profilePtrs(profiles)...); err != nil {
		return nil
	}
	return c.JSON(profiles)
}

// GetFollowing handles GET /api/profiles/:id/following
// @Summary List profiles a profile follows
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Param expand query []string false "Relations to inline on each profile" collectionFormat(multi)
// @Param profile query string false "Viewer profile for relationship flags"
// @Success 200 {array} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	expand, err := s.profileExpand(c)
	if err != nil {
		return nil
	}
	profiles, err := s.profileService.GetFollowing(c.UserContext(), c.Params("id"), expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	if err := s.annotate(c, profilePtrs(profiles)...); err != nil {
		return nil
	}
	return c.JSON(profiles)
}

// Follow handles PUT /api/profiles/:id/followers/:follower
// @Summary Make :follower follow :id
// @Tags profiles
// @Security BearerAuth
// @Param id path string true "Profile to follow"
// @Param follower path string true "Following profile, managed by the caller"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id}/followers/{follower} [put]
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.editFollow(c, s.profileService.Follow)
}

// Unfollow handles DELETE /api/profiles/:id/followers/:follower
// @Summary Remove the edge :follower -> :id
// @Tags profiles
// @Security BearerAuth
// @Param id path string true "Followed profile"
// @Param follower path string true "Following profile, managed by the caller"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id}/followers/{follower} [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.editFollow(c, s.profileService.Unfollow)
}

func (s *Server) editFollow(c *fiber.Ctx, apply func(ctx context.Context, profileID, followerID string) error) error {
	id, follower := c.Params("id"), c.Params("follower")
	// Self-follow is a bad request whoever asks.
	if id == follower {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("A profile cannot follow itself"))
	}
	if _, err := s.requireProfile(c, follower); err != nil {
		return nil
	}
	if err := apply(c.UserContext(), id, follower); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetTimeline handles GET /api/profiles/:id/timeline
// @Summary Posts by a profile and everyone it follows, newest first
// @Description Pass the X-Next-Cursor response header back as ?before= for the next page.
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param limit query int false "Page size, default 20, max 100"
// @Param before query string false "Cursor from X-Next-Cursor"
// @Param expand query []string false "Post relations: author, likes, question" collectionFormat(multi)
// @Success 200 {array} models.Post
// @Header 200 {string} X-Next-Cursor "Cursor for the next page"
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /profiles/{id}/timeline [get]
func (s *Server) GetTimeline(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")
	if _, err := s.requireProfile(c, id); err != nil {
		return nil
	}
	expand, err := s.postExpand(c)
	if err != nil {
		return nil
	}

	following, err := s.profileService.GetFollowingIDs(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	page, err := s.postService.GetByProfileList(ctx, service.TimelineInput{
		ProfileIDs: append(following, id),
		Expand:     expand,
		Limit:      c.QueryInt("limit", service.DefaultTimelineLimit),
		Before:     c.Query("before"),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	if page.NextCursor != "" {
		c.Set("X-Next-Cursor", page.NextCursor)
	}
	return c.JSON(page.Posts)
}
