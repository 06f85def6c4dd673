package chathub

import (
	"sort"
	"sync"
)

// Registry is this process's view of its own sockets: which user owns them
// and which rooms they are in. Membership is never shared across instances.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	users   map[string]map[string]Client
	rooms   map[string]map[string]Client
	joined  map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		users:   make(map[string]map[string]Client),
		rooms:   make(map[string]map[string]Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Register adds c and returns how many local sockets its user now has.
func (r *Registry) Register(c Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ID()] = c
	r.joined[c.ID()] = make(map[string]struct{})
	sockets, ok := r.users[c.UserID()]
	if !ok {
		sockets = make(map[string]Client)
		r.users[c.UserID()] = sockets
	}
	sockets[c.ID()] = c
	return len(sockets)
}

// Unregister drops c and every room membership it held in one step. ok is
// false if c was not registered; remaining is the user's local socket count
// afterwards.
func (r *Registry) Unregister(c Client) (remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID()]; !ok {
		return len(r.users[c.UserID()]), false
	}
	delete(r.clients, c.ID())

	for room := range r.joined[c.ID()] {
		r.removeMember(room, c.ID())
	}
	delete(r.joined, c.ID())

	sockets := r.users[c.UserID()]
	delete(sockets, c.ID())
	if len(sockets) == 0 {
		delete(r.users, c.UserID())
	}
	return len(sockets), true
}

// Join puts c in room. It reports false if c is no longer registered, which
// happens when a handler finishes after the socket went away.
func (r *Registry) Join(c Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.joined[c.ID()]
	if !ok {
		return false
	}
	rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Client)
		r.rooms[room] = members
	}
	members[c.ID()] = c
	return true
}

func (r *Registry) Leave(c Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, ok := r.joined[c.ID()]; ok {
		delete(rooms, room)
	}
	r.removeMember(room, c.ID())
}

func (r *Registry) removeMember(room, socketID string) {
	members := r.rooms[room]
	delete(members, socketID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Rooms lists the rooms c is in, sorted.
func (r *Registry) Rooms(c Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.joined[c.ID()]))
	for room := range r.joined[c.ID()] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Deliver hands frame to every local member of room, or to every local socket
// when room is empty. A client that cannot take the frame is closed; its read
// pump then detaches it. Deliver returns the number of clients that took it.
func (r *Registry) Deliver(room string, frame []byte) int {
	r.mu.RLock()
	var targets []Client
	if room == "" {
		targets = make([]Client, 0, len(r.clients))
		for _, c := range r.clients {
			targets = append(targets, c)
		}
	} else {
		targets = make([]Client, 0, len(r.rooms[room]))
		for _, c := range r.rooms[room] {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(frame) {
			delivered++
			continue
		}
		c.Close()
	}
	return delivered
}

func (r *Registry) UserSocketCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Len is the number of registered sockets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Clients returns a snapshot of every registered socket.
func (r *Registry) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
