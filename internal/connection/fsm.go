package connection

import (
	"context"
	"time"

	"github.com/looplab/fsm"
)

// Channel lifecycle events.
const (
	// eventDial starts a connection attempt.
	eventDial = "dial"
	// eventEstablished marks a successful handshake.
	eventEstablished = "established"
	// eventFault marks a transport failure (handshake or mid-stream).
	eventFault = "fault"
	// eventShutdown retires the channel: manual close or retry exhaustion.
	eventShutdown = "shutdown"
)

// newChannelFSM builds the lifecycle state machine for one channel.
//
// disconnected -> connecting -> {connected | error}
// connected    -> error (transport fault) | disconnected (shutdown)
// error        -> connecting (retry) | disconnected (exhausted/manual)
func newChannelFSM(cs *channelState) *fsm.FSM {
	events := fsm.Events{
		{Name: eventDial, Src: []string{string(StateDisconnected), string(StateError)}, Dst: string(StateConnecting)},
		{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
		{Name: eventFault, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateError)},
		{Name: eventShutdown, Src: []string{
			string(StateDisconnected), string(StateConnecting), string(StateConnected), string(StateError),
		}, Dst: string(StateDisconnected)},
	}

	callbacks := fsm.Callbacks{
		// Side-effects: bookkeeping on state entry.
		"enter_" + string(StateConnected): func(ctx context.Context, e *fsm.Event) {
			cs.mu.Lock()
			cs.attempts = 0
			cs.lastConnectedAt = time.Now()
			cs.mu.Unlock()
		},
		"enter_" + string(StateError): func(ctx context.Context, e *fsm.Event) {
			cs.mu.Lock()
			cs.attempts++
			cs.mu.Unlock()
		},
	}

	return fsm.NewFSM(string(StateDisconnected), events, callbacks)
}
