package play

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/session"
	"github.com/gokatarajesh/literacy-games/internal/session/judge"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// Handler authenticates websocket clients and routes play messages.
type Handler struct {
	service  *Service
	hub      *ws.Hub
	authSvc  *auth.Service
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a play websocket handler.
func NewHandler(service *Service, hub *ws.Hub, authSvc *auth.Service, upgrader *websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		hub:      hub,
		authSvc:  authSvc,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "play_ws").Logger(),
	}
}

// HandleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on websocket requests, so the token may also come as ?token=.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Missing token")
		return
	}

	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.HandleConnection(conn, Player{ID: claims.PlayerID, DisplayName: claims.DisplayName})
}

// HandleConnection serves one connection until it closes.
func (h *Handler) HandleConnection(conn *websocket.Conn, player Player) {
	logger := h.logger.With().Str("player_id", player.ID.String()).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.RegisterConnection(player.ID, wsConn)

	go wsConn.WritePump()

	ctx := context.Background()
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, player, wsConn, msg)
	})

	// Cleanup on disconnect
	if err := h.service.Leave(ctx, player.ID, wsConn); err != nil && !errors.Is(err, ErrNoSession) {
		logger.Warn().Err(err).Msg("leave on disconnect failed")
	}
	h.hub.UnregisterConnection(player.ID, wsConn)
}

// handleMessage routes incoming messages. Rejections are reported to the
// client and never returned, so a bad message does not end the connection.
func (h *Handler) handleMessage(ctx context.Context, player Player, sink Sink, msg ws.Message) error {
	var err error
	switch msg.Type {
	case ws.TypeStartGame:
		err = h.handleStartGame(ctx, player, sink, msg)
	case ws.TypeToggleFlag:
		var req ws.ToggleFlagPayload
		if err = msg.Decode(&req); err == nil {
			err = h.service.Do(ctx, player.ID, func(_ context.Context, c *session.Controller) error {
				return c.ToggleFlag(req.SubElementID)
			})
		}
	case ws.TypeChooseOption:
		var req ws.ChooseOptionPayload
		if err = msg.Decode(&req); err == nil {
			err = h.service.Do(ctx, player.ID, func(_ context.Context, c *session.Controller) error {
				return c.Choose(req.SettingID, req.OptionID)
			})
		}
	case ws.TypeProbeIssue:
		err = h.handleProbe(ctx, player, sink, msg)
	case ws.TypeSubmitJudgment:
		var req ws.SubmitJudgmentPayload
		if err = msg.Decode(&req); err == nil {
			err = h.service.Do(ctx, player.ID, func(ctx context.Context, c *session.Controller) error {
				return c.Submit(ctx, judge.Judgment{Answer: req.Answer, Flagged: req.Flagged, Choices: req.Choices})
			})
		}
	case ws.TypeNextRound:
		err = h.service.Do(ctx, player.ID, func(_ context.Context, c *session.Controller) error {
			return c.Next()
		})
	case ws.TypeRestart:
		err = h.service.Do(ctx, player.ID, func(_ context.Context, c *session.Controller) error {
			return c.Restart()
		})
	case ws.TypeLeaveGame:
		err = h.service.Leave(ctx, player.ID, sink)
	case ws.TypePing:
		h.reply(sink, msg.RequestID, ws.TypePong, struct{}{})
	default:
		h.sendError(sink, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
		return nil
	}

	if err != nil {
		code := errorCode(err)
		h.logger.Debug().Err(err).Str("type", msg.Type).Str("code", code).Msg("play message rejected")
		h.sendError(sink, msg.RequestID, code, err.Error())
	}
	return nil
}

func (h *Handler) handleStartGame(ctx context.Context, player Player, sink Sink, msg ws.Message) error {
	var req ws.StartGamePayload
	if err := msg.Decode(&req); err != nil {
		return err
	}
	if req.GameID == "" {
		return fmt.Errorf("%w: game_id is required", errMissingField)
	}
	difficulty := content.Difficulty(req.Difficulty)
	if req.Difficulty != "" && !difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %q", errInvalidField, req.Difficulty)
	}

	_, err := h.service.Start(ctx, player, StartRequest{
		GameID:     req.GameID,
		Difficulty: difficulty,
		MaxRounds:  req.MaxRounds,
	}, sink)
	return err
}

func (h *Handler) handleProbe(ctx context.Context, player Player, sink Sink, msg ws.Message) error {
	var req ws.ProbeIssuePayload
	if err := msg.Decode(&req); err != nil {
		return err
	}
	hit, err := h.service.Probe(ctx, player.ID, req.IssueID)
	if err != nil {
		return err
	}
	h.reply(sink, msg.RequestID, ws.TypeProbeResult, ws.ProbeResultPayload{IssueID: req.IssueID, Hit: hit})
	return nil
}

func (h *Handler) reply(sink Sink, requestID, msgType string, payload interface{}) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode reply")
		return
	}
	msg.RequestID = requestID
	if err := sink.Send(msg); err != nil {
		h.logger.Warn().Err(err).Str("type", msgType).Msg("reply dropped")
	}
}

func (h *Handler) sendError(sink Sink, requestID, code, message string) {
	h.reply(sink, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

var (
	errMissingField = errors.New("missing field")
	errInvalidField = errors.New("invalid field")
)

// errorCode maps domain errors onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoSession):
		return httperrors.ErrCodeSessionNotFound
	case errors.Is(err, ErrSessionActive):
		return httperrors.ErrCodeSessionActive
	case errors.Is(err, content.ErrUnknownGame):
		return httperrors.ErrCodeUnknownGame
	case errors.Is(err, session.ErrInvalidTransition):
		return httperrors.ErrCodeInvalidTransition
	case errors.Is(err, session.ErrUnsupportedAction):
		return httperrors.ErrCodeUnsupportedAction
	case errors.Is(err, session.ErrUnknownElement):
		return httperrors.ErrCodeUnknownElement
	case errors.Is(err, judge.ErrMissingAnswer):
		return httperrors.ErrCodeJudgmentRejected
	case errors.Is(err, errMissingField):
		return httperrors.ErrCodeMissingField
	case errors.Is(err, errInvalidField), errors.Is(err, ws.ErrInvalidPayload):
		return httperrors.ErrCodeInvalidPayload
	case errors.Is(err, content.ErrCatalogExhausted):
		return httperrors.ErrCodeSessionStartFailed
	default:
		return httperrors.ErrCodeInternalError
	}
}
