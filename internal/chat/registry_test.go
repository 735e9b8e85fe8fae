package chat

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberIDs(subs []Subscriber) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID())
	}
	sort.Strings(ids)
	return ids
}

func TestRegistry_JoinLeave(t *testing.T) {
	reg := NewRegistry()
	a, b := newTestSubscriber("a"), newTestSubscriber("b")

	assert.True(t, reg.Join("r1", a), "first join creates the room")
	assert.False(t, reg.Join("r1", b))
	assert.Equal(t, []string{"a", "b"}, memberIDs(reg.Members("r1")))
	assert.Equal(t, 1, reg.Rooms())

	removed, emptied := reg.Leave("r1", a)
	assert.True(t, removed)
	assert.False(t, emptied)
	assert.Equal(t, []string{"b"}, memberIDs(reg.Members("r1")))

	removed, emptied = reg.Leave("r1", b)
	assert.True(t, removed)
	assert.True(t, emptied)
	assert.Empty(t, reg.Members("r1"))
	assert.Equal(t, 0, reg.Rooms(), "empty rooms are dropped")
}

func TestRegistry_LeaveUnknown(t *testing.T) {
	reg := NewRegistry()
	a := newTestSubscriber("a")

	removed, emptied := reg.Leave("nowhere", a)
	assert.False(t, removed)
	assert.False(t, emptied)

	reg.Join("r1", newTestSubscriber("b"))
	removed, emptied = reg.Leave("r1", a)
	assert.False(t, removed)
	assert.False(t, emptied)
	assert.Equal(t, 1, reg.MemberCount("r1"))
}

func TestRegistry_DuplicateJoinIsSingleMembership(t *testing.T) {
	reg := NewRegistry()
	a := newTestSubscriber("a")

	reg.Join("r1", a)
	reg.Join("r1", a)
	assert.Equal(t, 1, reg.MemberCount("r1"))

	_, emptied := reg.Leave("r1", a)
	assert.True(t, emptied)
}

func TestRegistry_RejoinAfterEmpty(t *testing.T) {
	reg := NewRegistry()
	a := newTestSubscriber("a")

	require.True(t, reg.Join("r1", a))
	reg.Leave("r1", a)
	assert.True(t, reg.Join("r1", a), "room is recreated after being emptied")
	assert.Equal(t, []string{"a"}, memberIDs(reg.Members("r1")))
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()
	rooms := []string{"r1", "r2", "r3"}
	const perRoom = 60

	var wg sync.WaitGroup
	want := map[string][]string{}
	for _, room := range rooms {
		for i := 0; i < perRoom; i++ {
			sub := newTestSubscriber(fmt.Sprintf("%s-%03d", room, i))
			stays := i%3 == 0
			if stays {
				want[room] = append(want[room], sub.ID())
			}

			wg.Add(1)
			go func(room string, sub *testSubscriber, stays bool) {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					reg.Join(room, sub)
					reg.Leave(room, sub)
				}
				if stays {
					reg.Join(room, sub)
				}
			}(room, sub, stays)
		}
	}
	wg.Wait()

	for _, room := range rooms {
		sort.Strings(want[room])
		assert.Equal(t, want[room], memberIDs(reg.Members(room)), "room %s", room)
	}
	assert.Equal(t, len(rooms), reg.Rooms())
}
