package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/server"
	"github.com/xhad/docchat/pkg/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// echoGenerator reports how many turns it has seen so tests can check
// per-connection history.
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, question string, chunks []models.Chunk, history []models.Turn) (string, error) {
	if question == "fail" {
		return "", errors.New("model overloaded")
	}
	return question + " after " + string(rune('0'+len(history))), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	vs := store.NewMemory()
	require.NoError(t, vs.Upsert(context.Background(), "docs", []models.IndexEntry{
		{Chunk: models.Chunk{ID: "1", ParentSourcePath: "docs/api/visit.mdx", Text: "cy.visit"}, Vector: []float32{1, 0}},
		{Chunk: models.Chunk{ID: "2", ParentSourcePath: "docs/api/visit.mdx", Text: "options"}, Vector: []float32{1, 0.1}},
	}))

	logger := zaptest.NewLogger(t)
	factory := func() (*chat.Session, error) {
		return chat.NewSession(chat.SessionConfig{Collection: "docs", TopK: 4}, fakeEmbedder{}, vs, echoGenerator{}, logger)
	}

	ts := httptest.NewServer(server.New(factory, logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func ask(t *testing.T, conn *websocket.Conn, question string) server.Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(server.Message{Type: server.TypeQuestion, Content: question}))
	var reply server.Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocket_AnswersWithSources(t *testing.T) {
	conn := dial(t, newTestServer(t))

	reply := ask(t, conn, "how to visit")
	assert.Equal(t, server.TypeAnswer, reply.Type)
	assert.Equal(t, "how to visit after 0", reply.Content)
	assert.Equal(t, []any{"docs/api/visit.mdx"}, reply.Data)

	reply = ask(t, conn, "next")
	assert.Equal(t, "next after 1", reply.Content)
}

func TestWebSocket_SessionsAreIndependent(t *testing.T) {
	ts := newTestServer(t)
	first := dial(t, ts)
	second := dial(t, ts)

	ask(t, first, "one")
	ask(t, first, "two")

	reply := ask(t, second, "three")
	assert.Equal(t, "three after 0", reply.Content)
}

func TestWebSocket_ErrorsKeepConnectionOpen(t *testing.T) {
	conn := dial(t, newTestServer(t))

	reply := ask(t, conn, "fail")
	assert.Equal(t, server.TypeError, reply.Type)
	assert.Contains(t, reply.Content, "model overloaded")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad server.Message
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, server.TypeError, bad.Type)

	reply = ask(t, conn, "works")
	assert.Equal(t, "works after 0", reply.Content)
}

func TestWebSocket_ExitClosesConnection(t *testing.T) {
	conn := dial(t, newTestServer(t))

	reply := ask(t, conn, " EXIT ")
	assert.Equal(t, server.TypeStatus, reply.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}
