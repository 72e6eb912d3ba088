package server

import (
	"errors"
	"strings"
	"unicode"

	"askbox/internal/authz"
	"askbox/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a numeric route parameter as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "profileId" -> "profile ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// statusFor maps an AppError code to its HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes err with the status its code maps to.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusFor(err), err)
}

// expandValues collects every expand query value; the parameter may repeat.
func expandValues(c *fiber.Ctx) []string {
	var values []string
	for _, v := range c.Context().QueryArgs().PeekMulti("expand") {
		values = append(values, string(v))
	}
	return values
}

func (s *Server) profileExpand(c *fiber.Ctx) (models.ProfileExpand, error) {
	e, err := models.ParseProfileExpand(expandValues(c))
	if err != nil {
		_ = respondServiceError(c, err)
		return e, errResponseWritten
	}
	return e, nil
}

func (s *Server) postExpand(c *fiber.Ctx) (models.PostExpand, error) {
	e, err := models.ParsePostExpand(expandValues(c))
	if err != nil {
		_ = respondServiceError(c, err)
		return e, errResponseWritten
	}
	return e, nil
}

func (s *Server) userExpand(c *fiber.Ctx) (models.UserExpand, error) {
	e, err := models.ParseUserExpand(expandValues(c))
	if err != nil {
		_ = respondServiceError(c, err)
		return e, errResponseWritten
	}
	return e, nil
}

// currentUser loads the authenticated user with its managed profile ids.
// A token for a deleted user is rejected as unauthorized.
func (s *Server) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return nil, errResponseWritten
	}
	user, err := s.userService.Get(c.UserContext(), userID, models.UserExpand{})
	if err != nil {
		if models.IsNotFound(err) {
			_ = models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("User no longer exists"))
			return nil, errResponseWritten
		}
		_ = respondServiceError(c, err)
		return nil, errResponseWritten
	}
	return user, nil
}

// requireProfile loads the current user and checks it manages profileID.
func (s *Server) requireProfile(c *fiber.Ctx, profileID string) (*models.User, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return nil, err
	}
	if !authz.CheckProfile(user, profileID).IsAllowed() {
		_ = models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You do not manage this profile"))
		return nil, errResponseWritten
	}
	return user, nil
}

// optionalUser returns the caller when a valid token is present, else nil.
func (s *Server) optionalUser(c *fiber.Ctx) *models.User {
	userID, ok := s.optionalUserID(c)
	if !ok {
		return nil
	}
	user, err := s.userService.Get(c.UserContext(), userID, models.UserExpand{})
	if err != nil {
		return nil
	}
	return user
}

// annotate attaches relationship flags relative to the ?profile= viewer, if given.
func (s *Server) annotate(c *fiber.Ctx, profiles ...*models.Profile) error {
	viewer := c.Query("profile")
	if viewer == "" || len(profiles) == 0 {
		return nil
	}
	if err := s.profileService.Annotate(c.UserContext(), viewer, profiles...); err != nil {
		_ = respondServiceError(c, err)
		return errResponseWritten
	}
	return nil
}

func profilePtrs(profiles []models.Profile) []*models.Profile {
	out := make([]*models.Profile, len(profiles))
	for i := range profiles {
		out[i] = &profiles[i]
	}
	return out
}
