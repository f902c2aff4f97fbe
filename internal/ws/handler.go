package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/internal/auth"
	"github.com/stream-queue-system/pkg/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler streams a creator's queue events to websocket clients. Events
// arrive through Redis pub/sub, so every server instance can serve any
// creator.
type Handler struct {
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewHandler(client *redis.Client, allowedOrigins []string) *Handler {
	return &Handler{
		redis: client,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	creatorID := c.Param("creatorId")
	if creatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator_id is required"})
		return
	}

	ctx := c.Request.Context()
	sub := h.redis.Subscribe(ctx, events.ChannelName(creatorID))
	defer sub.Close()

	// Wait for the subscription so no event published after the upgrade is lost.
	if _, err := sub.Receive(ctx); err != nil {
		log.Error().Err(err).Str("creator_id", creatorID).Msg("failed to subscribe to queue events")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}
	defer conn.Close()

	userID := auth.IdentityFrom(c).UserID
	log.Debug().Str("creator_id", creatorID).Str("user_id", userID).Msg("websocket connected")

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	messages := sub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			log.Debug().Str("creator_id", creatorID).Str("user_id", userID).Msg("websocket disconnected")
			return
		}
	}
}

// readPump drains client frames so control messages are processed, and
// signals when the client goes away. Clients do not send commands.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}
