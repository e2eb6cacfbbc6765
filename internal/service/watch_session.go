package service

import (
	"context"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

// WatchMessage 播放器上行消息：progress 上报进度，complete 手动完成
type WatchMessage struct {
	Type              string  `json:"type"`
	WatchedSeconds    int     `json:"watchedSeconds"`
	WatchedPercentage float64 `json:"watchedPercentage"`
}

// WatchReply 下行消息，type 为 progress 或 error
type WatchReply struct {
	Type    string       `json:"type"`
	Data    *WatchResult `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
}

// WatchSessionServer 播放期间通过 WebSocket 持续上报观看进度
type WatchSessionServer struct {
	Progress *ProgressService
	upgrader websocket.Upgrader
	// 每个连接每秒最多处理的进度消息
	limit rate.Limit
	burst int
}

func NewWatchSessionServer(progress *ProgressService, allowedOrigins []string) *WatchSessionServer {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WatchSessionServer{
		Progress: progress,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		limit: rate.Limit(2),
		burst: 5,
	}
}

type watchClient struct {
	conn    *websocket.Conn
	send    chan WatchReply
	id      Identity
	videoID uint
	limiter *rate.Limiter
}

// Serve 升级连接并阻塞到连接关闭；调用前应已完成鉴权与访问检查
func (s *WatchSessionServer) Serve(w http.ResponseWriter, r *http.Request, id Identity, videoID uint) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &watchClient{
		conn:    conn,
		send:    make(chan WatchReply, sendBuffer),
		id:      id,
		videoID: videoID,
		limiter: rate.NewLimiter(s.limit, s.burst),
	}

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	s.readPump(r.Context(), c)
	<-done
	return nil
}

func (s *WatchSessionServer) readPump(ctx context.Context, c *watchClient) {
	defer func() {
		close(c.send)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("watch session closed unexpectedly", zap.Uint("userID", c.id.UserID), zap.Error(err))
			}
			return
		}

		// 超出频率的心跳直接丢弃，下一次上报会覆盖
		if !c.limiter.Allow() {
			continue
		}

		var msg WatchMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send <- WatchReply{Type: "error", Error: "bad_request", Message: "malformed message"}
			continue
		}

		var result *WatchResult
		switch msg.Type {
		case "progress", "":
			result, err = s.Progress.RecordWatch(ctx, c.id, c.videoID, msg.WatchedSeconds, msg.WatchedPercentage)
		case "complete":
			result, err = s.Progress.MarkComplete(ctx, c.id, c.videoID)
		default:
			c.send <- WatchReply{Type: "error", Error: "bad_request", Message: "unknown message type"}
			continue
		}

		if err != nil {
			_, code, ok := util.ErrorCode(err)
			if !ok {
				logger.Log.Error("watch session update failed", zap.Uint("videoID", c.videoID), zap.Error(err))
			}
			c.send <- WatchReply{Type: "error", Error: code}
			continue
		}
		c.send <- WatchReply{Type: "progress", Data: result}
	}
}

func (c *watchClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case reply, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(reply); err != nil {
				c.drain()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain 关闭连接使读协程退出，并排空发送队列避免其阻塞
func (c *watchClient) drain() {
	c.conn.Close()
	for range c.send {
	}
}
