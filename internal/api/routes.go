package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/auth"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/websocket"
)

const (
	// maxPlayBodySize bounds WAV uploads on the play endpoint
	maxPlayBodySize = 16 * 1024 * 1024

	enqueueTimeout = 5 * time.Second

	defaultPlaybackLimit = 20
	maxPlaybackLimit     = 500
)

// StateReader exposes the audio output state
type StateReader interface {
	State() entities.VolumeState
}

// Dependencies holds everything the routes need. History and Auth may be
// nil; without Auth the bus endpoint accepts anonymous clients.
type Dependencies struct {
	Hub     *websocket.Hub
	State   StateReader
	History repositories.PlaybackRepository
	Auth    *auth.Authenticator
	SiteIDs []string
	Logger  *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "rhasspy-speakers-cli-hermes",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/state", func(c echo.Context) error {
		return getState(c, deps)
	})
	v1.POST("/play", func(c echo.Context) error {
		return postPlay(c, deps.Hub, logger)
	})
	v1.GET("/playbacks", func(c echo.Context) error {
		return getPlaybacks(c, deps.History, logger)
	})

	// Bus endpoint
	e.GET("/ws", func(c echo.Context) error {
		if deps.Auth == nil {
			return websocket.HandleWebSocket(deps.Hub, c, c.QueryParam("client_id"), logger)
		}
		return websocketWithAuth(deps.Hub, deps.Auth, c, logger)
	})
}

func getState(c echo.Context, deps Dependencies) error {
	state := deps.State.State()
	siteIDs := deps.SiteIDs
	if siteIDs == nil {
		siteIDs = []string{}
	}

	return c.JSON(http.StatusOK, StateResponse{
		Volume:  state.Volume,
		Enabled: state.Enabled,
		SiteIDs: siteIDs,
		Clients: deps.Hub.ClientCount(),
	})
}

// postPlay queues the request body as a playBytes message, as if it had
// arrived on the bus.
func postPlay(c echo.Context, hub *websocket.Hub, logger *zap.Logger) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPlayBodySize+1))
	if err != nil {
		logger.Error("Failed to read play request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to read request body",
		})
	}
	if len(body) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_audio",
			Message: "WAV audio is required in the request body",
		})
	}
	if len(body) > maxPlayBodySize {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "audio_too_large",
			Message: "WAV audio exceeds the upload limit",
		})
	}

	siteID := c.QueryParam("site_id")
	if siteID == "" {
		siteID = domain.DefaultSiteID
	}
	if strings.Contains(siteID, "/") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_site_id",
			Message: "site_id must not contain '/'",
		})
	}
	sessionID := c.QueryParam("session_id")
	requestID := uuid.New().String()
	topic := domain.PlayBytesTopic(siteID, requestID)

	ctx, cancel := context.WithTimeout(c.Request().Context(), enqueueTimeout)
	defer cancel()

	err = hub.Enqueue(ctx, domain.Envelope{
		Topic:     topic,
		SessionID: sessionID,
		Payload:   body,
	})
	if err != nil {
		logger.Warn("Failed to queue play request",
			zap.String("requestID", requestID),
			zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "queue_unavailable",
			Message: "Playback queue is full or stopped",
		})
	}

	logger.Info("Play request queued",
		zap.String("requestID", requestID),
		zap.String("siteID", siteID),
		zap.Int("bytes", len(body)))

	return c.JSON(http.StatusAccepted, PlayResponse{
		RequestID: requestID,
		SiteID:    siteID,
		SessionID: sessionID,
		Topic:     topic,
	})
}

func getPlaybacks(c echo.Context, history repositories.PlaybackRepository, logger *zap.Logger) error {
	if history == nil {
		return c.JSON(http.StatusOK, PlaybacksResponse{Playbacks: []*entities.PlaybackRecord{}})
	}

	limit := defaultPlaybackLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}
	if limit > maxPlaybackLimit {
		limit = maxPlaybackLimit
	}

	records, err := history.ListRecent(c.Request().Context(), c.QueryParam("site_id"), limit)
	if err != nil {
		logger.Error("Failed to list playbacks", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_unavailable",
			Message: "Failed to load playback history",
		})
	}
	if records == nil {
		records = []*entities.PlaybackRecord{}
	}

	return c.JSON(http.StatusOK, PlaybacksResponse{
		Playbacks: records,
		Count:     len(records),
	})
}

// websocketWithAuth handles bus connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, authenticator *auth.Authenticator, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := authenticator.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleBusClient {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only bus client tokens are allowed",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("clientID", claims.ClientID))

	return websocket.HandleWebSocket(hub, c, claims.ClientID, logger)
}
