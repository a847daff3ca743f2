package protocol

import "fmt"

// Event is the closed set of things the simulation can schedule. The
// sealed method keeps the set closed to this package, so every variant a
// dispatch can see is one of RequestMessageEvent, ReceivePacketEvent or
// TimeoutEvent.
type Event interface {
	fmt.Stringer

	// Dispatch runs the event against the simulation at its scheduled
	// time. Dispatch runs to completion before the driver considers the
	// next event.
	Dispatch(sim *Simulator, t Clock)

	sealed()
}

// PacketHandler is the receiving side of a ReceivePacketEvent: either the
// client or the server role object. It is the single delivery primitive for
// both directions of the link.
type PacketHandler interface {
	ReceivePacket(p Packet, sim *Simulator, t Clock)
}

// RequestMessageEvent asks the client's message source for the next
// message and, if there is one, starts a new transfer session.
type RequestMessageEvent struct {
	Client *Client
}

func (e *RequestMessageEvent) sealed() {}

func (e *RequestMessageEvent) String() string {
	return "RequestMessage(client)"
}

func (e *RequestMessageEvent) Dispatch(sim *Simulator, t Clock) {
	e.Client.RequestMessage(sim, t)
}

// ReceivePacketEvent delivers a packet to a handler after the link's
// transmission delay.
type ReceivePacketEvent struct {
	Handler PacketHandler
	Packet  Packet
}

func (e *ReceivePacketEvent) sealed() {}

func (e *ReceivePacketEvent) String() string {
	return fmt.Sprintf("ReceivePacket(%s)", e.Packet)
}

func (e *ReceivePacketEvent) Dispatch(sim *Simulator, t Clock) {
	e.Handler.ReceivePacket(e.Packet, sim, t)
}

// TimeoutEvent fires the retransmission timer for the packet starting at
// Seq. Timers are never cancelled: if the packet was acknowledged in the
// meantime, or the session it belonged to has been reset (Epoch mismatch),
// the dispatch is a silent no-op.
type TimeoutEvent struct {
	Client *Client
	Seq    int
	Epoch  uint64
}

func (e *TimeoutEvent) sealed() {}

func (e *TimeoutEvent) String() string {
	return fmt.Sprintf("Timeout(seq=%d)", e.Seq)
}

func (e *TimeoutEvent) Dispatch(sim *Simulator, t Clock) {
	e.Client.PacketTimeout(e.Seq, e.Epoch, sim, t)
}
