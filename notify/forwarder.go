// Package notify fans p2p.P2pEvent values out to interested listeners
// using a protoactor-go actor, the same actor-mailbox pattern the
// teacher uses to decouple its chain service from direct callback
// wiring (chain/service/chain.go's SpawnNamed(props, "chain_message")).
package notify

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/sirupsen/logrus"

	"github.com/lanhop/core/p2p"
)

// Sink receives each event the Forwarder relays. Implementations must
// not block significantly: the actor's mailbox is single-threaded, and
// a slow Sink stalls every subsequent event.
type Sink interface {
	OnPeerEvent(ev p2p.P2pEvent)
}

// Forwarder is a protoactor-go actor: its mailbox serializes delivery of
// events read off a Manager's event stream to every registered Sink.
type Forwarder struct {
	sinks []Sink
	log   *logrus.Entry
}

// NewForwarder builds a Forwarder over the given sinks.
func NewForwarder(log *logrus.Entry, sinks ...Sink) *Forwarder {
	return &Forwarder{sinks: sinks, log: log}
}

// Receive implements actor.Actor. P2pEvent values are sent as the
// message itself; anything else is logged and dropped.
func (f *Forwarder) Receive(ctx actor.Context) {
	ev, ok := ctx.Message().(p2p.P2pEvent)
	if !ok {
		f.log.WithField("message", ctx.Message()).Debug("dropping non-P2pEvent message")
		return
	}
	for _, s := range f.sinks {
		s.OnPeerEvent(ev)
	}
}

// Spawn starts the Forwarder as a named actor and returns its PID, the
// same producer/SpawnNamed shape chain.Service.Init uses for its own
// message actor.
func Spawn(f *Forwarder, name string) (*actor.PID, error) {
	props := actor.FromProducer(func() actor.Actor { return f })
	return actor.SpawnNamed(props, name)
}

// Pump reads events off the events channel until it is closed,
// relaying each to pid's mailbox. Run this in its own
// goroutine; it returns once the event channel drains and closes.
func Pump(events <-chan p2p.P2pEvent, pid *actor.PID) {
	for ev := range events {
		actor.EmptyRootContext.Send(pid, ev)
	}
}
