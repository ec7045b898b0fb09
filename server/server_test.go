package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Config{Log: log, IdleTimeout: time.Minute, CleanupInterval: time.Minute})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

func dial(t *testing.T, ts *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %v: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("failed to send %s: %v", msg, err)
	}
}

// readUntil reads frames until one with the wanted type tag arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("did not receive a %q message: %v", typ, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("received malformed frame %s: %v", data, err)
		}
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestHealth(t *testing.T) {
	srv, ts := testServer(t)
	body := getJSON(t, ts.URL+"/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if body["instanceId"] != srv.InstanceID() {
		t.Fatalf("health reported instance %v, server has %v", body["instanceId"], srv.InstanceID())
	}
}

func TestCreateAndInspectRoom(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	id, _ := created["roomId"].(string)
	if len(id) != 6 {
		t.Fatalf("expected a 6-character room id, got %q", id)
	}

	info := getJSON(t, ts.URL+"/api/rooms/"+id, http.StatusOK)
	if info["playerCount"] != float64(0) || info["diceCount"] != float64(0) {
		t.Fatalf("unexpected room info: %v", info)
	}

	getJSON(t, ts.URL+"/api/rooms/NOSUCH", http.StatusNotFound)
}

func TestNotFoundFallback(t *testing.T) {
	_, ts := testServer(t)
	body := getJSON(t, ts.URL+"/definitely/not/a/route", http.StatusNotFound)
	if _, ok := body["roomCount"]; !ok {
		t.Fatalf("fallback response missing room count: %v", body)
	}
}

func TestCORSHeaders(t *testing.T) {
	_, ts := testServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/rooms", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS origin header")
	}
}

func TestWebSocketUnknownRoom(t *testing.T) {
	_, ts := testServer(t)
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/NOSUCH"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial to unknown room succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected a 404 response")
	}
}

func TestJoinReceivesRoomState(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)

	send(t, conn, `{"type":"join","roomId":"`+id+`","displayName":"Alice","color":"#ff0000"}`)
	state := readUntil(t, conn, "room_state", 5*time.Second)
	if state["roomId"] != id {
		t.Fatalf("room state for wrong room: %v", state)
	}
	players, _ := state["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("expected 1 player in state, got %v", state)
	}
}

func TestJoinIsBroadcastToOthers(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()

	first := dial(t, ts, id)
	send(t, first, `{"type":"join","roomId":"`+id+`","displayName":"Alice","color":"#ff0000"}`)
	readUntil(t, first, "room_state", 5*time.Second)

	second := dial(t, ts, id)
	send(t, second, `{"type":"join","roomId":"`+id+`","displayName":"Bob","color":"#00ff00"}`)
	readUntil(t, second, "room_state", 5*time.Second)

	joined := readUntil(t, first, "player_joined", 5*time.Second)
	player, _ := joined["player"].(map[string]any)
	if player == nil || player["displayName"] != "Bob" {
		t.Fatalf("unexpected player_joined: %v", joined)
	}
}

func TestSpawnIsBroadcastAndCounted(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)
	send(t, conn, `{"type":"join","roomId":"`+id+`","displayName":"Alice","color":"#ff0000"}`)
	readUntil(t, conn, "room_state", 5*time.Second)

	send(t, conn, `{"type":"spawn_dice","dice":[{"id":"die-1","diceType":"d6"}]}`)
	spawned := readUntil(t, conn, "dice_spawned", 5*time.Second)
	spawnedDice, _ := spawned["dice"].([]any)
	if len(spawnedDice) != 1 {
		t.Fatalf("unexpected dice_spawned: %v", spawned)
	}

	info := getJSON(t, ts.URL+"/api/rooms/"+id, http.StatusOK)
	if info["diceCount"] != float64(1) {
		t.Fatalf("room info did not count the die: %v", info)
	}
}

func TestMessagesBeforeJoinAreRejected(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)

	send(t, conn, `{"type":"roll"}`)
	errMsg := readUntil(t, conn, "error", 5*time.Second)
	if errMsg["code"] != "NOT_JOINED" {
		t.Fatalf("expected NOT_JOINED, got %v", errMsg)
	}
}

func TestDoubleJoinRejected(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)
	join := `{"type":"join","roomId":"` + id + `","displayName":"Alice","color":"#ff0000"}`
	send(t, conn, join)
	readUntil(t, conn, "room_state", 5*time.Second)

	send(t, conn, join)
	errMsg := readUntil(t, conn, "error", 5*time.Second)
	if errMsg["code"] != "ALREADY_JOINED" {
		t.Fatalf("expected ALREADY_JOINED, got %v", errMsg)
	}
}

func TestMalformedFrameReported(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)

	send(t, conn, `{"type":"teleport"}`)
	errMsg := readUntil(t, conn, "error", 5*time.Second)
	if errMsg["code"] != "INVALID_MESSAGE" {
		t.Fatalf("expected INVALID_MESSAGE, got %v", errMsg)
	}
}

func TestRollSettlesOverWire(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the physics simulation in real time")
	}
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	conn := dial(t, ts, id)
	send(t, conn, `{"type":"join","roomId":"`+id+`","displayName":"Alice","color":"#ff0000"}`)
	readUntil(t, conn, "room_state", 5*time.Second)

	send(t, conn, `{"type":"spawn_dice","dice":[{"id":"die-1","diceType":"d6"}]}`)
	readUntil(t, conn, "dice_spawned", 5*time.Second)

	send(t, conn, `{"type":"roll"}`)
	readUntil(t, conn, "roll_started", 5*time.Second)
	settledMsg := readUntil(t, conn, "die_settled", 20*time.Second)
	face, _ := settledMsg["faceValue"].(float64)
	if face < 1 || face > 6 {
		t.Fatalf("settled with face value %v", settledMsg)
	}
	complete := readUntil(t, conn, "roll_complete", 10*time.Second)
	if complete["total"] != face {
		t.Fatalf("roll total %v does not match face %v", complete["total"], face)
	}
}

func TestLeaveClosesSession(t *testing.T) {
	srv, ts := testServer(t)
	id, _ := srv.Rooms().CreateRoom()
	rm, _ := srv.Rooms().Room(id)

	conn := dial(t, ts, id)
	send(t, conn, `{"type":"join","roomId":"`+id+`","displayName":"Alice","color":"#ff0000"}`)
	readUntil(t, conn, "room_state", 5*time.Second)
	send(t, conn, `{"type":"leave"}`)

	deadline := time.Now().Add(5 * time.Second)
	for rm.PlayerCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("player still in room after leave")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
