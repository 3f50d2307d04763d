package channelfsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
)

// eventQueueCapacity bounds how many events Machine will buffer, per
// spec.md §5's bounded input queue. Machine's drop predicate never drops,
// so Enqueue blocks while the queue is full.
const eventQueueCapacity = 100

// Machine drives one channel's State through process, dispatching the
// Actions process returns to its collaborators. It is the single consumer
// of its own event queue: process itself never blocks, so all suspension
// happens at Run's queue, Transport, and ChannelsDb boundaries.
type Machine struct {
	km        KeyManager
	transport Transport
	watcher   Watcher
	db        ChannelsDb

	events *queue.BackpressureQueue[Event]

	// signTicker drives periodic CmdSign batching, so that several
	// adds/fulfills/fails proposed in quick succession ride a single
	// commitment instead of one each, mirroring the teacher's batch
	// ticker pattern for signing.
	signTicker ticker.Ticker

	goroutines *fn.GoroutineManager

	mu    sync.Mutex
	state State
}

// NewMachine constructs a Machine for a channel identified by chanID, not
// yet opened. Callers drive it by feeding CmdInitFunder or an incoming
// open_channel through Enqueue.
func NewMachine(chanID lnwire.ChannelID, km KeyManager, transport Transport,
	watcher Watcher, db ChannelsDb, signTicker ticker.Ticker) *Machine {

	return &Machine{
		km:         km,
		transport:  transport,
		watcher:    watcher,
		db:         db,
		signTicker: signTicker,
		goroutines: fn.NewGoroutineManager(),
		events: queue.NewBackpressureQueue[Event](
			eventQueueCapacity, func(int, Event) bool { return false },
		),
		state: initial(chanID),
	}
}

// Restore constructs a Machine already rehydrated from PersistedState,
// used when the host process restarts with open channels on disk.
func Restore(p PersistedState, km KeyManager, transport Transport,
	watcher Watcher, db ChannelsDb, signTicker ticker.Ticker) *Machine {

	m := NewMachine(p.ChannelID, km, transport, watcher, db, signTicker)
	m.state = State{
		Kind:        p.Kind,
		ChannelID:   p.ChannelID,
		Commitments: p.Commitments,
		Funding:     p.Funding,
	}

	return m
}

// Enqueue feeds ev into the machine's bounded input queue, to be processed
// by Run. It blocks until the event is accepted or ctx expires; events are
// never dropped.
func (m *Machine) Enqueue(ctx context.Context, ev Event) error {
	return m.events.Enqueue(ctx, ev)
}

// State returns a snapshot of the channel's current State.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Run is Machine's single-consumer event loop: it dequeues one Event at a
// time, advances State through process, and dispatches the resulting
// Actions to this Machine's collaborators. Run returns when ctx is
// cancelled or the channel reaches Closed.
func (m *Machine) Run(ctx context.Context) error {
	if m.signTicker != nil {
		m.signTicker.Resume()
		defer m.signTicker.Stop()

		m.goroutines.Go(ctx, func(ctx context.Context) {
			for {
				select {
				case <-m.signTicker.Ticks():
					_ = m.Enqueue(ctx, ExecuteCommand{Cmd: CmdSign{}})

				case <-ctx.Done():
					return
				}
			}
		})
	}
	defer m.goroutines.Stop()

	for {
		result := m.events.Dequeue(ctx)
		ev, err := result.Unpack()
		if err != nil {
			return err
		}

		if err := m.step(ctx, ev); err != nil {
			log.Errorf("channel %v: %v", m.State().ChannelID, err)
		}

		if m.State().Kind == Closed {
			return nil
		}
	}
}

// step advances the machine by exactly one event, holding mu only long
// enough to swap in the new State; dispatch runs outside the lock since it
// may itself call back into Enqueue (via ProcessCommand).
func (m *Machine) step(ctx context.Context, ev Event) error {
	m.mu.Lock()
	current := m.state
	m.mu.Unlock()

	next, actions, err := process(current, m.km, ev)

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	if err != nil {
		log.Debugf("channel %v: %v", next.ChannelID, err)
	}

	for _, action := range actions {
		if dispatchErr := m.dispatch(ctx, action); dispatchErr != nil {
			return fmt.Errorf("dispatching %T: %w", action, dispatchErr)
		}
	}

	return err
}

// dispatch carries out one Action against this Machine's collaborators.
func (m *Machine) dispatch(ctx context.Context, action Action) error {
	switch a := action.(type) {
	case SendMessage:
		return m.transport.Send(ctx, a.Msg, a.Flush)

	case SendWatch:
		_, err := m.watcher.Watch(ctx, a.Outpoint)
		return err

	case PublishTx:
		log.Infof("publishing commitment %v: %v", a.CommitTxID, a.Reason)
		return nil

	case StoreState:
		return m.db.AddOrUpdateChannel(a.Persisted)

	case ForgetChannel:
		return m.db.RemoveChannel(a.ChannelID)

	case ProcessCommand:
		return m.Enqueue(ctx, ExecuteCommand{Cmd: a.Cmd})

	case ChannelIDSwitch:
		log.Debugf("channel id switch %v -> %v", a.Old, a.New)
		return nil

	case ProcessAdd:
		log.Debugf("htlc %v added, awaiting upstream resolution", a.Add.ID)
		return nil

	case ProcessFulfill:
		log.Debugf("htlc fulfilled for origin %v", a.Origin)
		return nil

	default:
		return fmt.Errorf("unhandled action type %T", action)
	}
}
