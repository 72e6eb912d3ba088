package server

import (
	"askbox/internal/models"
	"askbox/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Publish a post as a managed profile
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{author=string,content=string,question_id=int} true "Post; question_id answers a question asked of the author"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Author     string `json:"author"`
		Content    string `json:"content"`
		QuestionID *uint  `json:"question_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if _, err := s.requireProfile(c, req.Author); err != nil {
		return nil
	}
	expand, err := s.postExpand(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		AuthorID:   req.Author,
		Content:    req.Content,
		QuestionID: req.QuestionID,
	}, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Param expand query []string false "Relations to inline: author, likes, question" collectionFormat(multi)
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	expand, err := s.postExpand(c)
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id, expand)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(ctx, id, models.PostExpand{})
	if err != nil {
		return respondServiceError(c, err)
	}
	if _, err := s.requireProfile(c, post.AuthorID); err != nil {
		return nil
	}
	if _, err := s.postService.Delete(ctx, id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles PUT /api/posts/:id/likes/:profile
// @Summary Like a post as a managed profile
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param profile path string true "Liking profile"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/likes/{profile} [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profileID := c.Params("profile")
	if _, err := s.requireProfile(c, profileID); err != nil {
		return nil
	}
	if err := s.postService.Like(c.UserContext(), id, profileID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnlikePost handles DELETE /api/posts/:id/likes/:profile
// @Summary Remove a like
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param profile path string true "Liking profile"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/likes/{profile} [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profileID := c.Params("profile")
	if _, err := s.requireProfile(c, profileID); err != nil {
		return nil
	}
	if err := s.postService.Unlike(c.UserContext(), id, profileID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
