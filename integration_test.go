package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server in guest-only mode and returns
// the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	// Minimal client dir with an index.html
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)

	rooms := NewRoomManager(DefaultLevel(), nil)
	hub := NewHub(nil, rooms)
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		srv.Close()
		rooms.StopAll()
	}
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readJSON reads the next JSON envelope, skipping binary state frames.
func readJSON(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

// waitForJSON reads JSON envelopes until one of the given type arrives.
func waitForJSON(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		env := readJSON(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("no %s message before deadline", msgType)
	return Envelope{}
}

// readBinaryFrame reads the next binary state frame, skipping JSON.
func readBinaryFrame(t *testing.T, conn *websocket.Conn) *Delta {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		d, err := DecodeDelta(raw)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return d
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createAndJoin creates a room then joins it. Returns the room ID.
func createAndJoin(t *testing.T, conn *websocket.Conn, name, rname string) string {
	t.Helper()
	sendMsg(t, conn, "create", CreateMsg{RoomName: rname})
	created := waitForJSON(t, conn, MsgCreated)
	rid := dataMap(t, created)["rid"].(string)

	sendMsg(t, conn, "join", JoinMsg{Name: name, RoomID: rid})
	waitForJSON(t, conn, MsgJoined)
	waitForJSON(t, conn, MsgWelcome)
	return rid
}

// ---------- room lifecycle over WS ----------

func TestCreateAndJoinRoom(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "create", CreateMsg{RoomName: "Arena"})
	created := waitForJSON(t, c, MsgCreated)
	rid := dataMap(t, created)["rid"].(string)
	if rid == "" {
		t.Fatal("created without room id")
	}

	sendMsg(t, c, "join", JoinMsg{Name: "Alice", RoomID: rid, Class: int(ClassRogue)})
	joined := waitForJSON(t, c, MsgJoined)
	if dataMap(t, joined)["rid"] != rid {
		t.Error("joined a different room")
	}
	welcome := waitForJSON(t, c, MsgWelcome)
	d := dataMap(t, welcome)
	if d["id"] == "" {
		t.Error("welcome without player id")
	}
	if int(d["class"].(float64)) != int(ClassRogue) {
		t.Errorf("welcome class = %v, want rogue", d["class"])
	}
}

func TestJoinNonExistentRoom(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "join", JoinMsg{Name: "Lost", RoomID: "does-not-exist"})
	if env := waitForJSON(t, c, MsgError); env.T != MsgError {
		t.Fatal("expected error")
	}
}

func TestCheckRoom(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid := createAndJoin(t, c1, "Alice", "Arena")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "check", CheckMsg{RID: rid})
	checked := waitForJSON(t, c2, MsgChecked)
	d := dataMap(t, checked)
	if d["exists"] != true || d["name"] != "Arena" || d["players"].(float64) != 1 {
		t.Errorf("checked = %v", d)
	}

	sendMsg(t, c2, "check", CheckMsg{RID: "nope"})
	checked2 := waitForJSON(t, c2, MsgChecked)
	if dataMap(t, checked2)["exists"] != false {
		t.Error("expected exists=false")
	}
}

func TestListRooms(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "list", nil)
	env := waitForJSON(t, c, MsgRooms)
	raw, _ := json.Marshal(env.Data)
	var rooms []RoomInfo
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 0 {
		t.Errorf("expected 0 rooms, got %d", len(rooms))
	}

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	createAndJoin(t, c2, "P1", "Arena1")

	sendMsg(t, c, "list", nil)
	env2 := waitForJSON(t, c, MsgRooms)
	raw2, _ := json.Marshal(env2.Data)
	var rooms2 []RoomInfo
	json.Unmarshal(raw2, &rooms2)
	if len(rooms2) != 1 || rooms2[0].Name != "Arena1" || rooms2[0].Players != 1 {
		t.Errorf("rooms = %+v", rooms2)
	}
}

// ---------- state sync over WS ----------

func TestStateFramesArrive(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Alice", "StateTest")

	frame := readBinaryFrame(t, c)
	if !frame.Full {
		t.Error("first frame should be a full snapshot")
	}
	if len(frame.Players) != 1 {
		t.Errorf("frame players = %d, want 1", len(frame.Players))
	}
}

func TestAckNarrowsFrames(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Alice", "AckTest")

	first := readBinaryFrame(t, c)
	sendMsg(t, c, "ack", AckMsg{Tick: first.Tick})

	// After the ack is processed, frames become deltas against it
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := readBinaryFrame(t, c)
		if !frame.Full {
			if frame.Base < first.Tick {
				t.Errorf("delta base %d predates the ack %d", frame.Base, first.Tick)
			}
			return
		}
	}
	t.Fatal("frames never switched to deltas")
}

func TestInputMovesPlayer(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Mover", "MoveTest")

	frame := readBinaryFrame(t, c)
	if len(frame.Players) != 1 {
		t.Fatal("expected one player in frame")
	}
	self := frame.Players[0]
	start := arrayVec3(*self.Pos)

	claim := start.Add(Vec3{1, 0, 0})
	sendMsg(t, c, "input", InputMsg{
		Seq: 1,
		Pos: vec3Array(claim),
		Rot: quatArray(QuatIdentity),
		Vel: [3]float64{10, 0, 0},
	})

	// The accepted move shows up in a later frame
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := readBinaryFrame(t, c)
		for _, pd := range f.Players {
			if pd.ID == self.ID && pd.Seq != nil && *pd.Seq == 1 {
				if pd.Pos == nil || arrayVec3(*pd.Pos) != claim {
					t.Fatalf("replicated pos = %v, want %v", pd.Pos, claim)
				}
				return
			}
		}
	}
	t.Fatal("input never acknowledged in the state stream")
}

func TestInputBeforeJoin(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	// Input without a room is dropped, connection stays up
	sendMsg(t, c, "input", InputMsg{Seq: 1})

	sendMsg(t, c, "list", nil)
	if env := waitForJSON(t, c, MsgRooms); env.T != MsgRooms {
		t.Fatal("connection broken after orphan input")
	}
}

func TestChatRelay(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid := createAndJoin(t, c1, "Alice", "ChatTest")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "join", JoinMsg{Name: "Bob", RoomID: rid})
	waitForJSON(t, c2, MsgWelcome)

	sendMsg(t, c1, "chat", ChatMsg{Text: "gl hf"})
	env := waitForJSON(t, c2, MsgChat)
	d := dataMap(t, env)
	if d["text"] != "gl hf" || d["name"] != "Alice" {
		t.Errorf("chat = %v", d)
	}
}

func TestDisconnectRemovesRoom(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c1 := dialWS(t, wsURL)
	rid := createAndJoin(t, c1, "Temp", "TempArena")
	c1.Close()

	// Hub unregister -> leave -> onEmpty teardown is async
	time.Sleep(300 * time.Millisecond)

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "check", CheckMsg{RID: rid})
	checked := waitForJSON(t, c2, MsgChecked)
	if dataMap(t, checked)["exists"] != false {
		t.Error("empty room should be torn down after disconnect")
	}
}

func TestGuestNameAssigned(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	_ = srv
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "create", CreateMsg{})
	created := waitForJSON(t, c, MsgCreated)
	rid := dataMap(t, created)["rid"].(string)

	sendMsg(t, c, "join", JoinMsg{RoomID: rid})
	waitForJSON(t, c, MsgWelcome)

	frame := readBinaryFrame(t, c)
	if len(frame.Players) != 1 || frame.Players[0].Name == nil {
		t.Fatal("expected one named player")
	}
	if !strings.HasPrefix(*frame.Players[0].Name, "Pilot_") {
		t.Errorf("guest name = %q", *frame.Players[0].Name)
	}
}

// ---------- HTTP surface ----------

func TestSPARoutingRootAndRoomPath(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	for _, path := range []string{"/", "/0c02b1a7-9d34-4a3b-8f33-1f0a0e2d5c11"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), "<html>") {
			t.Errorf("GET %s should serve index.html", path)
		}
	}
}

func TestCacheControlHeader(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
}

func TestQRCodeEndpoint(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	rid := createAndJoin(t, c, "Alice", "QRTest")

	resp, err := http.Get(srv.URL + "/qr/" + rid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("GET /qr/ status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	resp2, err := http.Get(srv.URL + "/qr/unknown-room")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != 404 {
		t.Errorf("unknown room QR status = %d, want 404", resp2.StatusCode)
	}
}

// ---------- util ----------

func TestGenerateIDLength(t *testing.T) {
	id := GenerateID(4)
	if len(id) != 8 { // 4 bytes = 8 hex chars
		t.Errorf("expected 8 chars, got %d: %s", len(id), id)
	}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v := GenerateID(4)
		if seen[v] {
			t.Fatalf("duplicate id %s", v)
		}
		seen[v] = true
	}
}

func TestHubConnLimits(t *testing.T) {
	hub := NewHub(nil, NewRoomManager(DefaultLevel(), nil))

	for i := 0; i < maxConnsPerIP; i++ {
		if !hub.CanAccept("1.2.3.4") {
			t.Fatalf("conn %d refused below the per-IP cap", i)
		}
		hub.TrackConnect("1.2.3.4")
	}
	if hub.CanAccept("1.2.3.4") {
		t.Error("per-IP cap not enforced")
	}
	if !hub.CanAccept("5.6.7.8") {
		t.Error("other IPs should still be accepted")
	}
	hub.TrackDisconnect("1.2.3.4")
	if !hub.CanAccept("1.2.3.4") {
		t.Error("disconnect should free a slot")
	}
}
