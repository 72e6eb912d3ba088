package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"askbox/internal/authz"
	"askbox/internal/middleware"
	"askbox/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const wsTicketTTL = 30 * time.Second

var errBadTicket = errors.New("invalid websocket ticket")

func wsTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

func isWSPath(path string) bool {
	return strings.HasPrefix(path, "/api/ws/") && path != "/api/ws/ticket"
}

// consumeWSTicket redeems a ticket exactly once. An empty ticket yields (0, nil).
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, error) {
	if ticket == "" {
		return 0, nil
	}
	if s.redis == nil {
		return 0, errBadTicket
	}
	raw, err := s.redis.GetDel(ctx, wsTicketKey(ticket)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "WS ticket lookup failed", slog.String("error", err.Error()))
		}
		return 0, errBadTicket
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errBadTicket
	}
	return uint(id), nil
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Browsers cannot set headers on websocket upgrades; exchange the bearer token for a single-use ticket passed as ?ticket=.
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Live feeds are unavailable",
		})
	}
	userID := c.Locals("userID").(uint)
	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), formatUserID(userID), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// ProfileFeedHandler handles GET /api/ws/profiles/:id
// @Summary Live profile event feed
// @Description Websocket stream of events addressed to a profile the caller manages (follows, likes, questions).
// @Tags feed
// @Param id path string true "Profile ID"
// @Param ticket query string true "Ticket from /ws/ticket"
// @Success 101
// @Failure 403 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws/profiles/{id} [get]
func (s *Server) ProfileFeedHandler() fiber.Handler {
	upgrade := websocket.New(s.serveFeed)

	return func(c *fiber.Ctx) error {
		if s.feedHub == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Live feeds are unavailable",
			})
		}
		// Params aliases the request buffer; the feed outlives the handler.
		profileID := utils.CopyString(c.Params("id"))
		user, err := s.requireProfile(c, profileID)
		if err != nil {
			return nil
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(models.ErrorResponse{
				Error: "Websocket upgrade required",
			})
		}
		c.Locals("feedProfileID", profileID)
		c.Locals("feedUser", user)
		return upgrade(c)
	}
}

func (s *Server) serveFeed(conn *websocket.Conn) {
	profileID, _ := conn.Locals("feedProfileID").(string)
	user, _ := conn.Locals("feedUser").(*models.User)
	if !authz.CheckProfile(user, profileID).IsAllowed() {
		_ = conn.Close()
		return
	}

	client, err := s.feedHub.Register(profileID, user.ID, conn)
	if err != nil {
		_ = conn.WriteJSON(models.ErrorResponse{Error: err.Error()})
		_ = conn.Close()
		return
	}
	middleware.Logger.Info("Feed connected",
		slog.String("profile_id", profileID), slog.Uint64("user_id", uint64(user.ID)))

	go client.WritePump()
	client.ReadPump()
}
