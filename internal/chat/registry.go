package chat

import "sync"

// Subscriber is anything that can receive room events. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(ev Event) error
}

type room struct {
	mu      sync.RWMutex
	members map[string]Subscriber
	// retired rooms were emptied and are about to leave the index; joins must not land here.
	retired bool
}

// Registry tracks which subscribers belong to which room. Entries are created on first
// join and dropped when the last member leaves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// Join adds sub to roomID and reports whether the room entry had to be created.
func (r *Registry) Join(roomID string, sub Subscriber) (created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		rm.mu.Lock()
		if !rm.retired {
			rm.members[sub.ID()] = sub
			rm.mu.Unlock()
			return false
		}
		rm.mu.Unlock()
	}

	r.rooms[roomID] = &room{members: map[string]Subscriber{sub.ID(): sub}}
	return true
}

// Leave removes sub from roomID. emptied is true when this call removed the last member.
func (r *Registry) Leave(roomID string, sub Subscriber) (removed, emptied bool) {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return false, false
	}

	rm.mu.Lock()
	if _, removed = rm.members[sub.ID()]; removed {
		delete(rm.members, sub.ID())
	}
	if removed && len(rm.members) == 0 {
		rm.retired = true
		emptied = true
	}
	rm.mu.Unlock()

	if emptied {
		r.mu.Lock()
		// A join may already have replaced the retired entry.
		if r.rooms[roomID] == rm {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
	return removed, emptied
}

// Members returns a snapshot of the room's current members.
func (r *Registry) Members(roomID string) []Subscriber {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.retired {
		return nil
	}
	out := make([]Subscriber, 0, len(rm.members))
	for _, sub := range rm.members {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) MemberCount(roomID string) int {
	return len(r.Members(roomID))
}

// Rooms is the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
