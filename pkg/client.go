package protocol

import (
	"fmt"
	"io"

	"github.com/google/netstack/tcpip/header"

	"tcpsim/simconfig"
)

// MessageSource supplies the messages the client transports. The
// interactive binary prompts on stdin; tests script it with a slice.
type MessageSource interface {
	// Next returns the next message to send. ok is false when no more
	// traffic is coming, which lets the simulation quiesce naturally.
	Next() (msg string, ok bool)
}

// inFlightPacket is one sent, not-yet-acknowledged packet. The acked flag
// is what a firing retransmission timer checks: there is no timer
// cancellation, so an acknowledged packet's timeout must find acked=true
// and do nothing.
type inFlightPacket struct {
	packet   Packet
	sendTime Clock
	acked    bool
}

// Client is the sending endpoint. It segments an outbound message into
// packets of at most MaxPacketData bytes, pipelines them up to the server's
// advertised window, schedules a retransmission timer per packet and
// processes cumulative acknowledgments.
type Client struct {
	cfg    simconfig.Parameters
	source MessageSource
	out    io.Writer
	loss   LossModel
	peer   PacketHandler

	// Session state for the in-progress message. Fully reset once the
	// FIN is acknowledged; epoch increments on every reset so timers
	// from a finished session are recognized as stale.
	msgBytes    []byte
	sendNext    int // offset of the next unsent byte
	una         int // cumulative acknowledgment point: bytes below are acked
	ack         int // next expected server sequence number
	inFlight    map[int]*inFlightPacket
	peerWindow  int // most recently advertised server window, bytes
	outstanding int // sent, not-yet-acknowledged bytes
	epoch       uint64
}

// NewClient returns a client reading messages from source and reporting
// sends on out. Transmissions toward the peer run through loss.
func NewClient(cfg simconfig.Parameters, source MessageSource, out io.Writer, loss LossModel) *Client {
	return &Client{
		cfg:        cfg,
		source:     source,
		out:        out,
		loss:       loss,
		peerWindow: cfg.ServerWindow,
	}
}

// Connect sets the receiving end of the client's transmissions.
func (c *Client) Connect(peer PacketHandler) {
	c.peer = peer
}

// RequestMessage asks the message source for the next message and, when it
// produces one, starts a fresh session and sends the first packets.
func (c *Client) RequestMessage(sim *Simulator, t Clock) {
	msg, ok := c.source.Next()
	if !ok || len(msg) == 0 {
		log.Debugf("client: no more messages, quiescing at time %d", t)
		return
	}
	fmt.Fprintf(c.out, "Client sends %q\n", msg)
	c.msgBytes = []byte(msg)
	c.sendNext = 0
	c.una = 0
	c.ack = 0
	c.outstanding = 0
	c.inFlight = make(map[int]*inFlightPacket)
	c.SendNextPackets(sim, t)
}

// SendNextPackets sends packets while unsent bytes remain and the window
// has room, so several packets may be in flight at once. Each packet gets a
// retransmission timer; whether its delivery event is scheduled at all is
// the loss model's call.
func (c *Client) SendNextPackets(sim *Simulator, t Clock) {
	for c.sendNext < len(c.msgBytes) && c.outstanding < c.peerWindow {
		n := c.cfg.MaxPacketData
		if rem := len(c.msgBytes) - c.sendNext; n > rem {
			n = rem
		}
		// The advertised window bounds outstanding bytes, not packets.
		if room := c.peerWindow - c.outstanding; n > room {
			n = room
		}
		// The SYN bit alternates between consecutive messages. Sequence
		// numbers restart at zero for each message, so the flags are
		// what distinguish a new message's segment from a stale copy of
		// an equally shaped one from the message before.
		flags := uint8(header.TCPFlagAck)
		if c.epoch&1 == 1 {
			flags |= header.TCPFlagSyn
		}
		if c.sendNext+n == len(c.msgBytes) {
			flags |= header.TCPFlagFin
		}
		p := Packet{
			Seq:   c.sendNext,
			Ack:   c.ack,
			Flags: flags,
			Data:  c.msgBytes[c.sendNext : c.sendNext+n],
		}
		c.inFlight[p.Seq] = &inFlightPacket{packet: p, sendTime: t}
		c.outstanding += n
		c.sendNext += n
		sim.Schedule(&TimeoutEvent{Client: c, Seq: p.Seq, Epoch: c.epoch}, t+Clock(c.cfg.Timeout()))
		c.transmit(p, sim, t)
	}
}

// transmit draws the loss model once and schedules delivery at the peer
// after the transmission delay, or nothing at all if the packet is lost.
func (c *Client) transmit(p Packet, sim *Simulator, t Clock) {
	if !c.loss.ShouldDeliver() {
		log.Debugf("client: packet lost in transit (%s) at time %d", p, t)
		return
	}
	sim.Schedule(&ReceivePacketEvent{Handler: c.peer, Packet: p}, t+Clock(c.cfg.TransmissionDelay))
}

// ReceivePacket processes an acknowledgment from the server. Acks are
// cumulative: p.Ack covers every byte below it, so all in-flight packets
// that end at or below p.Ack are acknowledged by this single packet,
// whatever order their deliveries took. Newly opened window is filled
// immediately, and a fully acknowledged message tears the session down and
// schedules the prompt for the next one.
func (c *Client) ReceivePacket(p Packet, sim *Simulator, t Clock) {
	if c.msgBytes == nil {
		// No active session; a reply from an already-completed
		// exchange still in flight.
		return
	}
	if !p.HasFlag(header.TCPFlagAck) {
		return
	}
	if p.Ack > len(c.msgBytes) {
		// Stale reply addressed to a previous, longer message.
		return
	}

	for seq, f := range c.inFlight {
		if seq+len(f.packet.Data) <= p.Ack {
			if !f.acked {
				f.acked = true
				c.outstanding -= len(f.packet.Data)
			}
			delete(c.inFlight, seq)
		}
	}
	if p.Ack > c.una {
		c.una = p.Ack
	}
	if p.Ack > c.sendNext {
		c.sendNext = p.Ack
	}
	c.ack = p.Seq + 1
	c.peerWindow = p.Window

	if c.una >= len(c.msgBytes) {
		// The FIN rides the final slice, so covering the whole
		// message acknowledges it too.
		log.Debugf("client: message of %d bytes fully acknowledged at time %d", len(c.msgBytes), t)
		c.resetSession()
		sim.Schedule(&RequestMessageEvent{Client: c}, t)
		return
	}
	c.SendNextPackets(sim, t)
}

// PacketTimeout handles a retransmission timer firing for the packet at
// seq. An acknowledged packet, or one from a session that has since been
// reset, is a silent no-op; otherwise the same slice is resent with the
// same sequence number and a fresh timer.
func (c *Client) PacketTimeout(seq int, epoch uint64, sim *Simulator, t Clock) {
	if epoch != c.epoch {
		return
	}
	f, ok := c.inFlight[seq]
	if !ok || f.acked {
		return
	}
	log.Debugf("client: timeout for seq=%d sent at %d, resending at time %d", seq, f.sendTime, t)
	f.sendTime = t
	sim.Schedule(&TimeoutEvent{Client: c, Seq: seq, Epoch: c.epoch}, t+Clock(c.cfg.Timeout()))
	c.transmit(f.packet, sim, t)
}

// resetSession clears all per-message state so nothing leaks into the next
// transfer. Bumping the epoch invalidates every timer still queued for the
// finished message.
func (c *Client) resetSession() {
	c.msgBytes = nil
	c.sendNext = 0
	c.una = 0
	c.ack = 0
	c.outstanding = 0
	c.inFlight = nil
	c.peerWindow = c.cfg.ServerWindow
	c.epoch++
}
