package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	ws "github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades family members to a live feed of their family's
// shopping list and chat.
type WebSocketHandler struct {
	hub      *ws.Hub
	families services.FamilyServiceProvider
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Origins are checked
// against allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *ws.Hub, families services.FamilyServiceProvider, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub, families: families}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Serve checks family membership before upgrading, so a non-member gets a
// normal JSON error response.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	member, err := h.families.Membership(r.Context(), uid)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if family := r.URL.Query().Get("family"); family != "" && family != member.FamilyID {
		respond.Error(w, r, apperr.Forbidden("You are not a member of this family"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, services.FamilyKey(member.FamilyID), uid)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump(h.handleIncoming)
}

// handleIncoming processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncoming(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		h.hub.SendTo(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case "ping":
		if pong, err := ws.NewMessage("pong", nil); err == nil {
			h.hub.SendTo(client, pong)
		}

	case "message":
		body, _ := msg.Payload.(map[string]interface{})
		text, _ := body["message"].(string)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// PostMessage broadcasts to the family, the sender included.
		if _, err := h.families.PostMessage(ctx, client.UserID, text); err != nil {
			h.hub.SendTo(client, ws.NewErrorMessage(err.Error()))
		}

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		h.hub.SendTo(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}
