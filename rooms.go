package main

import (
	"sync"

	"github.com/google/uuid"
)

const maxRooms = 100

// RoomManager handles creation and lookup of rooms. Rooms never share
// state; each runs its own goroutine over its own world.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	level *Level
	stats *StatsWriter
}

// NewRoomManager creates a RoomManager. stats may be nil.
func NewRoomManager(level *Level, stats *StatsWriter) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		level: level,
		stats: stats,
	}
}

// CreateRoom creates and starts a new room. Returns nil if the limit is
// reached.
func (rm *RoomManager) CreateRoom(name string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil
	}

	room := NewRoom(uuid.NewString(), name, rm.level, rm.stats)
	room.onEmpty = rm.removeRoom
	rm.rooms[room.ID] = room
	go room.Run()
	return room
}

// removeRoom stops and forgets an emptied room.
func (rm *RoomManager) removeRoom(id string) {
	rm.mu.Lock()
	room, ok := rm.rooms[id]
	if ok {
		delete(rm.rooms, id)
	}
	rm.mu.Unlock()
	if ok {
		room.Stop()
	}
}

// GetRoom returns a room by ID
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// RemovePlayer removes a player from a room. The room reports back through
// its onEmpty hook when the last player is gone and is torn down then.
func (rm *RoomManager) RemovePlayer(roomID, playerID string) {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return
	}
	room.Send(leaveCmd{pid: playerID})
}

// StopAll stops every room. Used on server shutdown.
func (rm *RoomManager) StopAll() {
	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.rooms = make(map[string]*Room)
	rm.mu.Unlock()
	for _, room := range rooms {
		room.Stop()
	}
}

// ListRooms returns info about all active rooms
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		list = append(list, RoomInfo{
			ID:      room.ID,
			Name:    room.Name,
			Players: room.PlayerCount(),
			Phase:   int(room.Phase()),
		})
	}
	return list
}
