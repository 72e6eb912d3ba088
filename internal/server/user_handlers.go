package server

import (
	"askbox/internal/authz"
	"askbox/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetSelf handles GET /api/users/self
// @Summary The authenticated user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param expand query []string false "Relations to inline: profiles" collectionFormat(multi)
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /users/self [get]
func (s *Server) GetSelf(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	return s.writeUser(c, user.ID)
}

// GetUser handles GET /api/users/:id
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param expand query []string false "Relations to inline: profiles" collectionFormat(multi)
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.writeUser(c, id)
}

func (s *Server) writeUser(c *fiber.Ctx, id uint) error {
	expand, err := s.userExpand(c)
	if err != nil {
		return nil
	}
	user, err := s.userService.Get(c.UserContext(), id, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary Delete your own account
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	if !authz.CheckSelf(user, id).IsAllowed() {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You can only delete your own account"))
	}
	if err := s.userService.Delete(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	if s.feedHub != nil {
		for _, profileID := range user.ProfileIDs {
			s.feedHub.DisconnectUser(profileID, id)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddUserProfile handles PUT /api/users/:id/profiles/:profileId
// @Summary Make a user a manager of a profile the caller manages
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param profileId path string true "Profile ID"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/profiles/{profileId} [put]
func (s *Server) AddUserProfile(c *fiber.Ctx) error {
	userID, profileID, expand, err := s.parseManagerEdit(c)
	if err != nil {
		return nil
	}
	user, err := s.userService.AddProfile(c.UserContext(), userID, profileID, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// RemoveUserProfile handles DELETE /api/users/:id/profiles/:profileId
// @Summary Remove a user from a profile's managers
// @Description Removing the last manager is allowed; the profile then has no one who can change it.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param profileId path string true "Profile ID"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/profiles/{profileId} [delete]
func (s *Server) RemoveUserProfile(c *fiber.Ctx) error {
	userID, profileID, expand, err := s.parseManagerEdit(c)
	if err != nil {
		return nil
	}
	user, err := s.userService.RemoveProfile(c.UserContext(), userID, profileID, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	if s.feedHub != nil {
		s.feedHub.DisconnectUser(profileID, userID)
	}
	return c.JSON(user)
}

func (s *Server) parseManagerEdit(c *fiber.Ctx) (uint, string, models.UserExpand, error) {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return 0, "", models.UserExpand{}, err
	}
	profileID := c.Params("profileId")
	if _, err := s.requireProfile(c, profileID); err != nil {
		return 0, "", models.UserExpand{}, err
	}
	expand, err := s.userExpand(c)
	if err != nil {
		return 0, "", models.UserExpand{}, err
	}
	return userID, profileID, expand, nil
}
