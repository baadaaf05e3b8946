package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub(logger.Nop())

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the server side to register the connection.
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	values := []contracts.SectorIndexValue{
		{SectorCode: "BANK", SectorName: "Bank", Index: 101.5, Timestamp: time.Now()},
	}
	require.NoError(t, hub.PublishIndices(context.Background(), values))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload struct {
		Type   string                       `json:"type"`
		Values []contracts.SectorIndexValue `json:"values"`
	}
	require.NoError(t, json.Unmarshal(msg, &payload))
	assert.Equal(t, "indices", payload.Type)
	require.Len(t, payload.Values, 1)
	assert.Equal(t, "BANK", payload.Values[0].SectorCode)
}

func TestHub_PublishWithNoClients(t *testing.T) {
	hub := NewHub(logger.Nop())

	err := hub.PublishIndices(context.Background(), []contracts.SectorIndexValue{
		{SectorCode: "BANK", Index: 100, Timestamp: time.Now()},
	})
	assert.NoError(t, err)
	assert.Zero(t, hub.ClientCount())
}

func TestHub_EmptyBatchIsNoOp(t *testing.T) {
	hub := NewHub(logger.Nop())
	assert.NoError(t, hub.PublishIndices(context.Background(), nil))
}
