package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/printmarket/backend/internal/application/order"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrderAccess struct {
	allowed map[uuid.UUID]bool
	// pool orders are visible to the caller without the caller being a party
	pool map[uuid.UUID]bool
}

func (s stubOrderAccess) Get(_ context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	switch {
	case s.allowed[id]:
		return &orderapp.OrderResponse{ID: id, CustomerID: actor.UserID}, nil
	case s.pool[id]:
		return &orderapp.OrderResponse{ID: id, CustomerID: uuid.New()}, nil
	}
	return nil, shared.ErrForbidden
}

type sseFrame struct {
	Type  string
	Event realtime.Event
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var frame sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			frame.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame.Event))
		case line == "":
			return frame
		}
	}
}

func startStreamServer(t *testing.T, hub *realtime.Hub, access OrderAccess, userID uuid.UUID) *httptest.Server {
	t.Helper()
	return startStreamServerWithHeartbeat(t, hub, access, userID, time.Hour)
}

func startStreamServerWithHeartbeat(t *testing.T, hub *realtime.Hub, access OrderAccess, userID uuid.UUID, heartbeat time.Duration) *httptest.Server {
	t.Helper()
	return startStreamServerAs(t, hub, access, userID, identity.RoleCustomer, heartbeat)
}

func startStreamServerAs(t *testing.T, hub *realtime.Hub, access OrderAccess, userID uuid.UUID, role identity.Role, heartbeat time.Duration) *httptest.Server {
	t.Helper()
	h := NewStreamHandler(hub, access, heartbeat)
	r := gin.New()
	r.GET("/stream", asUser(userID, role), h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func openStream(t *testing.T, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestStreamHandler_DeliversUserEvents(t *testing.T) {
	hub := realtime.NewHub()
	userID := uuid.New()
	srv := startStreamServer(t, hub, stubOrderAccess{}, userID)

	resp, reader := openStream(t, srv.URL+"/stream")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	connected := readFrame(t, reader)
	assert.Equal(t, "connected", connected.Type)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.PushToUser(context.Background(), userID, "notification", map[string]string{"title": "Order accepted"}))

	frame := readFrame(t, reader)
	assert.Equal(t, "notification", frame.Type)
	assert.Equal(t, "notification", frame.Event.Type)
	assert.Equal(t, "Order accepted", frame.Event.Data.(map[string]any)["title"])
}

func TestStreamHandler_JoinsOrderRoom(t *testing.T) {
	hub := realtime.NewHub()
	userID, orderID := uuid.New(), uuid.New()
	srv := startStreamServer(t, hub, stubOrderAccess{allowed: map[uuid.UUID]bool{orderID: true}}, userID)

	_, reader := openStream(t, srv.URL+"/stream?order_id="+orderID.String())
	readFrame(t, reader)

	require.NoError(t, hub.PushToOrder(context.Background(), orderID, "order_status_changed", map[string]string{"status": "paid"}))

	frame := readFrame(t, reader)
	assert.Equal(t, "order_status_changed", frame.Type)
}

func TestStreamHandler_RejectsForeignOrder(t *testing.T) {
	hub := realtime.NewHub()
	srv := startStreamServer(t, hub, stubOrderAccess{}, uuid.New())

	resp, _ := openStream(t, srv.URL+"/stream?order_id="+uuid.NewString())

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestStreamHandler_PoolProducerCannotJoinRoom(t *testing.T) {
	hub := realtime.NewHub()
	orderID := uuid.New()
	access := stubOrderAccess{pool: map[uuid.UUID]bool{orderID: true}}
	srv := startStreamServerAs(t, hub, access, uuid.New(), identity.RoleProducer, time.Minute)

	resp, _ := openStream(t, srv.URL+"/stream?order_id="+orderID.String())

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestStreamHandler_AdminJoinsAnyVisibleRoom(t *testing.T) {
	hub := realtime.NewHub()
	orderID := uuid.New()
	access := stubOrderAccess{pool: map[uuid.UUID]bool{orderID: true}}
	srv := startStreamServerAs(t, hub, access, uuid.New(), identity.RoleAdmin, time.Minute)

	resp, reader := openStream(t, srv.URL+"/stream?order_id="+orderID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readFrame(t, reader)

	require.NoError(t, hub.PushToOrder(context.Background(), orderID, "new_message", map[string]string{"content": "hi"}))
	assert.Equal(t, "new_message", readFrame(t, reader).Type)
}

func TestStreamHandler_InvalidOrderID(t *testing.T) {
	hub := realtime.NewHub()
	srv := startStreamServer(t, hub, stubOrderAccess{}, uuid.New())

	resp, _ := openStream(t, srv.URL+"/stream?order_id=nope")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamHandler_UnsubscribesOnDisconnect(t *testing.T) {
	hub := realtime.NewHub()
	srv := startStreamServer(t, hub, stubOrderAccess{}, uuid.New())

	resp, reader := openStream(t, srv.URL+"/stream")
	readFrame(t, reader)
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, resp.Body.Close())

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_EndsWhenHubCloses(t *testing.T) {
	hub := realtime.NewHub()
	srv := startStreamServer(t, hub, stubOrderAccess{}, uuid.New())

	_, reader := openStream(t, srv.URL+"/stream")
	readFrame(t, reader)

	require.NoError(t, hub.Close(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := reader.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after hub close")
	}
}

func TestStreamHandler_Heartbeat(t *testing.T) {
	hub := realtime.NewHub()
	srv := startStreamServerWithHeartbeat(t, hub, stubOrderAccess{}, uuid.New(), 20*time.Millisecond)

	_, reader := openStream(t, srv.URL+"/stream")
	readFrame(t, reader)

	assert.Equal(t, "heartbeat", readFrame(t, reader).Type)
}

func TestNewStreamHandler_DefaultHeartbeat(t *testing.T) {
	h := NewStreamHandler(realtime.NewHub(), stubOrderAccess{}, 0)
	assert.Equal(t, 30*time.Second, h.heartbeat)
}
