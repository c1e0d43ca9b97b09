package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/knowledge-be/types"
)

func dialIngest(t *testing.T, svc *WebSocketService) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(svc.HandleIngest))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebsocketIngest(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	knowledge := NewKnowledgeService(repo, index, &wordEmbedder{}, fastRetry(), nil)
	svc := NewWebSocketService(knowledge, nil)
	conn := dialIngest(t, svc)

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{
		Type: types.TypeWebsocketIngest,
		Payload: types.StoreDocumentRequest{
			Title:   "MCP Onboarding",
			Content: "mcp onboarding guide",
		},
	}))

	var resp types.WebsocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, types.TypeWebsocketStatus, resp.Type)

	raw, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	var status types.BatchStoreStatus
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, types.StatusSuccess, status.Status)
	assert.NotEmpty(t, status.DocumentID)

	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, 1, index.Len())
}

func TestWebsocketIngestReportsErrors(t *testing.T) {
	repo := newFaultyRepo()
	index := newFaultyIndex(len(testVocab))
	knowledge := NewKnowledgeService(repo, index, &wordEmbedder{}, fastRetry(), nil)
	svc := NewWebSocketService(knowledge, nil)
	conn := dialIngest(t, svc)

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{
		Type:    types.TypeWebsocketIngest,
		Payload: types.StoreDocumentRequest{Title: "", Content: "no title"},
	}))

	var resp types.WebsocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, types.TypeWebsocketError, resp.Type)
	assert.Zero(t, repo.Len())

	// The connection survives a failed ingest.
	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{Type: types.TypeWebsocketPing}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, types.TypeWebsocketPong, resp.Type)
}

func TestWebsocketUnknownType(t *testing.T) {
	knowledge := NewKnowledgeService(newFaultyRepo(), newFaultyIndex(len(testVocab)), &wordEmbedder{}, fastRetry(), nil)
	svc := NewWebSocketService(knowledge, nil)
	conn := dialIngest(t, svc)

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{Type: "bogus"}))

	var resp types.WebsocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, types.TypeWebsocketError, resp.Type)
}
