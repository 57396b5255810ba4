// Package server exposes chat sessions over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/docchat/pkg/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

const (
	TypeQuestion = "question"
	TypeAnswer   = "answer"
	TypeError    = "error"
	TypeStatus   = "status"
)

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// SessionFactory builds a fresh session for each connection.
type SessionFactory func() (*chat.Session, error)

type WSServer struct {
	newSession SessionFactory
	logger     *zap.Logger
}

func New(factory SessionFactory, logger *zap.Logger) *WSServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSServer{newSession: factory, logger: logger}
}

// Handler serves /ws and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Add a simple health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe runs until ctx is cancelled.
func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session, err := s.newSession()
	if err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		s.sendMessage(conn, Message{Type: TypeError, Content: "failed to start session"})
		return
	}
	defer session.Close()

	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Debug("session opened")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("error reading message", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, Message{Type: TypeError, Content: "invalid message"})
			continue
		}
		if msg.Type != TypeQuestion {
			s.sendMessage(conn, Message{Type: TypeError, Content: "unsupported message type " + msg.Type})
			continue
		}

		if chat.IsExit(msg.Content) {
			s.sendMessage(conn, Message{Type: TypeStatus, Content: "bye"})
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		// Questions on one connection are answered in order.
		answer, err := session.Ask(r.Context(), msg.Content)
		if err != nil {
			logger.Warn("turn failed", zap.Error(err))
			s.sendMessage(conn, Message{Type: TypeError, Content: err.Error()})
			continue
		}

		sources := make([]string, 0, len(answer.Sources))
		seen := make(map[string]bool)
		for _, c := range answer.Sources {
			if !seen[c.ParentSourcePath] {
				seen[c.ParentSourcePath] = true
				sources = append(sources, c.ParentSourcePath)
			}
		}
		s.sendMessage(conn, Message{Type: TypeAnswer, Content: answer.Text, Data: sources})
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("error sending message", zap.Error(err))
	}
}
