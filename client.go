package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
	maxNameLen     = 16

	// Inbound message allowance: sustained 60/s (movement at client frame
	// rate plus control traffic), bursts allowed.
	inboundRate  = 60
	inboundBurst = 120

	// binaryInputMarker prefixes compact msgpack input frames from the client.
	binaryInputMarker = 0x01
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	roomID     string
	room       *Room
	remoteAddr string
	limiter    *rate.Limiter
	// Identity state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		limiter:    rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
	}
}

// ReadPump reads messages from the WebSocket connection. Missed pongs past
// the read deadline surface as a read error, which is an implicit leave.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		// Binary frames carry compact msgpack movement input
		if msgType == websocket.BinaryMessage && len(message) > 1 && message[0] == binaryInputMarker {
			c.handleBinaryInput(message[1:])
		} else {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgInput:
		c.handleInput(env.D)
	case MsgFire:
		c.handleFire(env.D)
	case MsgMissile:
		c.handleMissile(env.D)
	case MsgChat:
		c.handleChat(env.D)
	case MsgAck:
		c.handleAck(env.D)
	case MsgResync:
		c.handleResync()
	case MsgRestart:
		c.handleRestart()
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	}
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgRooms, Data: c.hub.rooms.ListRooms()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := msg.RoomName
	if name == "" {
		name = "Dogfight Arena"
	}
	if len(name) > 30 {
		name = name[:30]
	}
	room := c.hub.rooms.CreateRoom(name)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "too many active rooms"}})
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"rid": room.ID}})
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(msg.RID)
	if room == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{RID: msg.RID, Exists: false}})
		return
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		RID:     msg.RID,
		Exists:  true,
		Name:    room.Name,
		Players: room.PlayerCount(),
	}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	if c.roomID != "" {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "already in a room"}})
		return
	}
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := msg.Name
	if c.authUsername != "" {
		name = c.authUsername
	}
	if name == "" {
		name = GenerateGuestName()
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	class := ShipClass(msg.Class)
	if class < ClassFighter || class > ClassRogue {
		class = ClassFighter
	}

	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room not found"}})
		return
	}

	reply := make(chan joinResult, 1)
	room.Send(joinCmd{
		name:   name,
		class:  class,
		authID: c.authPlayerID,
		conn:   c,
		reply:  reply,
	})

	var res joinResult
	select {
	case res = <-reply:
	case <-time.After(2 * time.Second):
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room unavailable"}})
		return
	}
	if !res.ok {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room full"}})
		return
	}

	c.playerID = res.playerID
	c.roomID = room.ID
	c.room = room

	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"rid": room.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:    res.playerID,
		Class: int(class),
		Tick:  res.tick,
	}})
}

func (c *Client) handleLeave() {
	if c.roomID == "" {
		return
	}
	c.hub.rooms.RemovePlayer(c.roomID, c.playerID)
	c.playerID = ""
	c.roomID = ""
	c.room = nil
}

// handleBinaryInput decodes a compact msgpack movement frame
func (c *Client) handleBinaryInput(payload []byte) {
	if c.room == nil {
		return
	}
	var input InputMsg
	if err := msgpack.Unmarshal(payload, &input); err != nil {
		log.Printf("binary input decode from %s: %v", c.remoteAddr, err)
		return
	}
	if err := c.room.Submit().SubmitMove(c.playerID, input); err != nil {
		log.Printf("input rejected: %v", err)
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.room == nil {
		return
	}
	var input InputMsg
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}
	if err := c.room.Submit().SubmitMove(c.playerID, input); err != nil {
		log.Printf("input rejected: %v", err)
	}
}

func (c *Client) handleFire(data json.RawMessage) {
	if c.room == nil {
		return
	}
	var msg FireMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := c.room.Submit().SubmitFire(c.playerID, msg); err != nil {
		log.Printf("fire rejected: %v", err)
	}
}

func (c *Client) handleMissile(data json.RawMessage) {
	if c.room == nil {
		return
	}
	var msg MissileMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := c.room.Submit().SubmitMissile(c.playerID, msg); err != nil {
		log.Printf("missile update rejected: %v", err)
	}
}

func (c *Client) handleChat(data json.RawMessage) {
	if c.room == nil {
		return
	}
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.room.Send(chatCmd{pid: c.playerID, text: msg.Text})
}

func (c *Client) handleAck(data json.RawMessage) {
	if c.room == nil {
		return
	}
	var msg AckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.room.Send(ackCmd{pid: c.playerID, tick: msg.Tick})
}

func (c *Client) handleResync() {
	if c.room == nil {
		return
	}
	c.room.Send(resyncCmd{pid: c.playerID})
}

func (c *Client) handleRestart() {
	if c.room == nil {
		return
	}
	c.room.Send(restartCmd{pid: c.playerID})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "invalid token"}})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    msg.Token,
		Username: username,
		PlayerID: id,
	}})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "not authenticated"}})
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "profile not found"}})
		return
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username: c.authUsername,
		Kills:    stats.Kills,
		Deaths:   stats.Deaths,
	}})
}
