package main

import "encoding/json"

// Client -> Server message types
const (
	MsgList    = "list"   // list rooms
	MsgCreate  = "create" // create room
	MsgCheck   = "check"  // check if a room exists
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgInput   = "input"   // movement: client-computed, server bound-checked
	MsgFire    = "fire"    // spawn a laser or missile
	MsgMissile = "missile" // owner-only homing missile update
	MsgChat    = "chat"    // also server -> client broadcast
	MsgAck     = "ack"     // snapshot acknowledged, advances the delta baseline
	MsgResync  = "resync"  // request a full snapshot after a decode failure
	MsgRestart = "restart" // explicit Results -> Lobby

	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
	MsgProfile  = "profile"
)

// Server -> Client message types. State sync itself is a binary msgpack
// frame (see replicate.go); these are the JSON control and event messages.
const (
	MsgWelcome = "welcome"
	MsgJoined  = "joined"
	MsgCreated = "created"
	MsgRooms   = "rooms"
	MsgChecked = "checked"
	MsgError   = "error"

	MsgHit     = "hit"
	MsgKill    = "kill"
	MsgRespawn = "respawn"
	MsgPhase   = "phase"

	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// InputMsg carries client-computed movement, sent every client frame.
// The sequence number must be strictly increasing per connection.
type InputMsg struct {
	Seq uint32     `json:"seq" msgpack:"seq"`
	Pos [3]float64 `json:"p" msgpack:"p"`
	Rot [4]float64 `json:"r" msgpack:"r"` // quaternion w,x,y,z
	Vel [3]float64 `json:"v" msgpack:"v"`
}

// FireMsg requests a projectile spawn
type FireMsg struct {
	Weapon string     `json:"w"` // "laser" or "missile"
	Pos    [3]float64 `json:"p"`
	Dir    [3]float64 `json:"d"`
}

const (
	WeaponLaser   = "laser"
	WeaponMissile = "missile"
)

// MissileMsg is an owner-only position/direction update for a live missile
type MissileMsg struct {
	ID  string     `json:"id"`
	Pos [3]float64 `json:"p"`
	Dir [3]float64 `json:"d"`
}

// ChatMsg carries room chat; From/Name are filled in by the server
type ChatMsg struct {
	From string `json:"from,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// AckMsg acknowledges receipt of the snapshot for a tick
type AckMsg struct {
	Tick uint64 `json:"tick"`
}

// JoinMsg is sent when a player wants to join a room
type JoinMsg struct {
	Name   string `json:"name"`
	RoomID string `json:"rid"`
	Class  int    `json:"class"`
}

// CreateMsg is sent when a player wants to create a room
type CreateMsg struct {
	RoomName string `json:"rname"`
}

// CheckMsg asks whether a room exists
type CheckMsg struct {
	RID string `json:"rid"`
}

// CheckedMsg is the response to a room check
type CheckedMsg struct {
	RID     string `json:"rid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
}

// WelcomeMsg tells the joining player its id and class
type WelcomeMsg struct {
	ID    string `json:"id"`
	Class int    `json:"class"`
	Tick  uint64 `json:"tick"`
}

// HitMsg is broadcast when a projectile connects
type HitMsg struct {
	TargetID string `json:"tid"`
	Amount   int    `json:"amt"`
}

// KillMsg is broadcast when a hit is lethal
type KillMsg struct {
	KillerID   string `json:"kid"`
	KillerName string `json:"kn"`
	VictimID   string `json:"vid"`
	VictimName string `json:"vn"`
}

// RespawnMsg is broadcast when a dead player comes back
type RespawnMsg struct {
	PlayerID string     `json:"pid"`
	Pos      [3]float64 `json:"p"`
}

// PhaseMsg announces a match phase transition
type PhaseMsg struct {
	Phase int     `json:"phase"`
	Time  float64 `json:"time"` // timer for the new phase, seconds
}

// RoomInfo is used in the room list
type RoomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Phase   int    `json:"phase"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with credentials
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a previously issued token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"player_id"`
}

// ProfileDataMsg returns lifetime aggregate stats
type ProfileDataMsg struct {
	Username string `json:"username"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

func vec3Array(v Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
func arrayVec3(a [3]float64) Vec3 { return Vec3{a[0], a[1], a[2]} }
func quatArray(q Quat) [4]float64 { return [4]float64{q.W, q.X, q.Y, q.Z} }
func arrayQuat(a [4]float64) Quat { return Quat{a[0], a[1], a[2], a[3]} }
