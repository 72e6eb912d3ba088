package server

import (
	"context"

	"askbox/internal/models"
	"askbox/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateQuestion handles POST /api/questions
// @Summary Ask another profile a question
// @Tags questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{from=string,recipient=string,content=string,anonymous=bool} true "Question; from must be managed by the caller"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /questions [post]
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		From      string `json:"from"`
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
		Anonymous bool   `json:"anonymous"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if _, err := s.requireProfile(c, req.From); err != nil {
		return nil
	}

	q, err := s.questionService.Create(c.UserContext(), service.CreateQuestionInput{
		Content:     req.Content,
		Anonymous:   req.Anonymous,
		FromID:      req.From,
		RecipientID: req.Recipient,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// GetQuestion handles GET /api/questions/:id
// @Summary Get a question
// @Description The asker of an anonymous question is only shown to its managers.
// @Tags questions
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [get]
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	q, err := s.questionService.Get(c.UserContext(), id, s.optionalUser(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(q)
}

// DeleteQuestion handles DELETE /api/questions/:id
// @Summary Delete a question from the recipient's inbox
// @Tags questions
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [delete]
func (s *Server) DeleteQuestion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	q, err := s.questionService.Get(ctx, id, nil)
	if err != nil {
		return respondServiceError(c, err)
	}
	if _, err := s.requireProfile(c, q.RecipientID); err != nil {
		return nil
	}
	if _, err := s.questionService.Delete(ctx, id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetReceivedQuestions handles GET /api/profiles/:id/questions
// @Summary Inbox of questions asked of a managed profile
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Question
// @Failure 403 {object} models.ErrorResponse
// @Router /profiles/{id}/questions [get]
func (s *Server) GetReceivedQuestions(c *fiber.Ctx) error {
	return s.listQuestions(c, s.questionService.ListReceived)
}

// GetAskedQuestions handles GET /api/profiles/:id/questions/asked
// @Summary Questions a managed profile has asked
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Question
// @Failure 403 {object} models.ErrorResponse
// @Router /profiles/{id}/questions/asked [get]
func (s *Server) GetAskedQuestions(c *fiber.Ctx) error {
	return s.listQuestions(c, s.questionService.ListAsked)
}

func (s *Server) listQuestions(
	c *fiber.Ctx,
	list func(ctx context.Context, in service.ListQuestionsInput) ([]models.Question, error),
) error {
	id := c.Params("id")
	user, err := s.requireProfile(c, id)
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	questions, err := list(c.UserContext(), service.ListQuestionsInput{
		ProfileID: id,
		Limit:     page.Limit,
		Offset:    page.Offset,
		Viewer:    user,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(questions)
}
