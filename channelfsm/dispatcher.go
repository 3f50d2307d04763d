package channelfsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/22388o/lightning-kmp/lntypes"
	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/22388o/lightning-kmp/multimutex"
)

// Dispatcher fans incoming events out to one Machine per channel. A peer
// connection decodes and routes messages for many channels concurrently,
// but spec.md §5 requires strictly-ordered, exclusive delivery per
// channel; the per-channel HashMutex gives that guarantee without forcing
// every channel on a connection through one shared goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	machines map[lnwire.ChannelID]*Machine

	locks *multimutex.HashMutex
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		machines: make(map[lnwire.ChannelID]*Machine),
		locks:    multimutex.NewHashMutex(),
	}
}

// Register adds m to the dispatcher, keyed by its current channel id.
func (d *Dispatcher) Register(m *Machine) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.machines[m.State().ChannelID] = m
}

// Rekey moves a Machine's entry from old to new, called once a
// ChannelIDSwitch action fires, replacing the temporary pre-funding
// channel id with the funding-derived one.
func (d *Dispatcher) Rekey(old, new lnwire.ChannelID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.machines[old]
	if !ok {
		return
	}

	delete(d.machines, old)
	d.machines[new] = m
}

// Forget removes a Machine's entry, called once it reaches Closed.
func (d *Dispatcher) Forget(chanID lnwire.ChannelID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.machines, chanID)
}

// Dispatch enqueues ev onto the Machine registered for chanID, serialized
// against any other Dispatch call for the same channel id so that two
// concurrent deliveries can never race to enqueue out of order.
func (d *Dispatcher) Dispatch(ctx context.Context, chanID lnwire.ChannelID,
	ev Event) error {

	hash := lntypes.Hash(chanID)

	d.locks.Lock(hash)
	defer d.locks.Unlock(hash)

	d.mu.RLock()
	m, ok := d.machines[chanID]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no channel registered for %v", chanID)
	}

	return m.Enqueue(ctx, ev)
}
