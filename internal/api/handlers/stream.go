package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/quantscan/pkg/logger"
)

// WebSocket 연결 유지 설정
const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// StreamHandler pushes scan progress over WebSocket
type StreamHandler struct {
	scanner  ScanService
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a new progress stream handler
func NewStreamHandler(scanner ScanService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		scanner: scanner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS 미들웨어와 동일하게 모든 Origin 허용
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// StreamProgress sends the current snapshot, then every update until the client leaves
// GET /api/progress/ws
func (h *StreamHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade가 이미 에러 응답을 씀
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.scanner.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// 읽기 루프: pong 처리 + 연결 종료 감지
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, h.scanner.Progress()); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(conn, p); err != nil {
				h.logger.WithError(err).Debug("Progress stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				h.logger.WithError(err).Debug("Failed to send ping")
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
