package report

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/catalog"
	"github.com/eleven-am/civic311/internal/chat"
	"github.com/eleven-am/civic311/internal/inference"
	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
)

const anonymousOwner = "anonymous"

type Handler struct {
	manager *Manager
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewHandler(manager *Manager, cat *catalog.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		catalog: cat,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group, optionalAuth echo.MiddlewareFunc) {
	g.GET("/report/ws", h.Connect, optionalAuth)
}

// Connect godoc
// @Summary      Open a report session
// @Description  Upgrades to a WebSocket carrying one report conversation. Send {"type":"query","imageUrl","prompt","category"} or {"type":"new_report"}; receive status, messages (full history), messages_appended (new messages only) and error frames.
// @Tags         report
// @Param        token  query  string  false  "Optional access token"
// @Success      101
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /report/ws [get]
func (h *Handler) Connect(c echo.Context) error {
	owner := anonymousOwner
	if claims := auth.GetClaims(c); claims != nil {
		owner = claims.UID
	}

	ctx := c.Request().Context()
	session, err := h.manager.Open(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrTooManySessions) {
			return shared.NewAPIError("too_many_sessions", "Too many active report sessions").
				ToHTTP(http.StatusServiceUnavailable)
		}
		h.logger.Error("failed to open report session", "error", err)
		return shared.InternalError("session_failed", "Failed to start report session")
	}
	defer h.manager.Close(session.ID())

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return nil
	}

	conn := newWSConnection(ws, session, h.catalog, h.logger)

	// Log callbacks never overlap, so diff needs no lock.
	diff := &messageDiff{}
	unwatchState := session.WatchState(func(s inference.State) {
		conn.enqueue(statusMessage(s))
	})
	unwatchMessages := session.WatchMessages(func(msgs []chat.Message) {
		if frame := diff.next(msgs); frame != nil && !conn.enqueue(frame) {
			diff.reset()
		}
	})
	defer unwatchState()
	defer unwatchMessages()

	h.logger.Info("report client connected", "session_id", session.ID(), "owner", owner)

	go conn.writePump(ctx)
	conn.readPump(ctx)

	h.logger.Info("report client disconnected", "session_id", session.ID())
	return nil
}
