package core

import (
	"sync"

	"github.com/google/uuid"
)

// MaxChannel bounds the channel id space to [0, MaxChannel).
const MaxChannel = 32

// dataFD is one registered logical data file descriptor: a channel tag
// plus a debug-only correlation id, never placed on the wire — the
// channel demultiplexing is purely the small integer tag.
type dataFD struct {
	channel int
	debugID uuid.UUID
}

// dataFDTable demultiplexes traffic by channel: the host registers a
// channel and gets back a fd; the same channel tag is expected to be used
// symmetrically at the peer.
type dataFDTable struct {
	mu      sync.RWMutex
	byFD    map[int]*dataFD
	nextFD  int
}

func newDataFDTable() *dataFDTable {
	return &dataFDTable{byFD: make(map[int]*dataFD)}
}

// AddDataFD registers channel and returns a new fd, or an error if channel
// is out of range.
func (t *dataFDTable) AddDataFD(channel int) (fd int, err error) {
	if channel < 0 || channel >= MaxChannel {
		return 0, codedErr(ErrConfiguration, "handle_add_datafd", ErrSlotRange)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fd = t.nextFD
	t.nextFD++
	t.byFD[fd] = &dataFD{channel: channel, debugID: uuid.New()}
	return fd, nil
}

// RemoveDataFD forgets fd.
func (t *dataFDTable) RemoveDataFD(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byFD, fd)
}

// Channel returns the channel tag registered for fd.
func (t *dataFDTable) Channel(fd int) (channel int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.byFD[fd]
	if !ok {
		return 0, false
	}
	return d.channel, true
}

// GetDataFD returns the fd registered for channel, if any.
func (t *dataFDTable) GetDataFD(channel int) (fd int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for f, d := range t.byFD {
		if d.channel == channel {
			return f, true
		}
	}
	return 0, false
}
