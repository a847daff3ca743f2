package protocol

import (
	"fmt"
	"io"

	"github.com/google/netstack/tcpip/header"

	"tcpsim/simconfig"
)

// Server is the receiving endpoint. It reassembles the byte stream in
// order, answers every packet with a cumulative acknowledgment carrying its
// advertised window, and on a FIN that completes a message delivers the
// reassembled bytes and resets for the next one.
type Server struct {
	cfg  simconfig.Parameters
	out  io.Writer
	loss LossModel
	peer PacketHandler

	buffer   []byte
	expected int // next expected sequence number

	// Identity of the FIN that completed the previous message and the
	// ack it established. A retransmitted copy of that FIN arriving
	// after the reset must be re-acknowledged with the old cumulative
	// point instead of being mistaken for new data. The identity match
	// is safe only because the client alternates the SYN bit across
	// consecutive messages: a new message's segment of the same seq and
	// length always differs in flags.
	prevFin     Packet
	prevFinAck  int
	havePrevFin bool
}

// NewServer returns a server delivering completed messages to out.
// Acknowledgment transmissions run through loss, applying the same
// independent loss model to both directions of the link.
func NewServer(cfg simconfig.Parameters, out io.Writer, loss LossModel) *Server {
	return &Server{
		cfg:  cfg,
		out:  out,
		loss: loss,
	}
}

// Connect sets the receiving end of the server's acknowledgments.
func (s *Server) Connect(peer PacketHandler) {
	s.peer = peer
}

// Buffered returns a copy of the bytes reassembled so far for the
// in-progress message.
func (s *Server) Buffered() []byte {
	return append([]byte(nil), s.buffer...)
}

// ReceivePacket handles a data packet. Only the packet whose sequence
// number equals the next expected one advances the stream; duplicates and
// out-of-order packets leave the buffer and the expected sequence untouched
// but are still acknowledged with the established cumulative value.
func (s *Server) ReceivePacket(p Packet, sim *Simulator, t Clock) {
	if s.havePrevFin && s.expected == 0 && len(s.buffer) == 0 && p.SameIdentity(s.prevFin) {
		// Duplicate of the FIN that completed the previous message:
		// the delivery already happened, so just repeat its ack.
		s.reply(Packet{
			Seq:    0,
			Ack:    s.prevFinAck,
			Flags:  header.TCPFlagAck | header.TCPFlagFin,
			Window: s.cfg.ServerWindow,
		}, sim, t)
		return
	}

	reply := Packet{
		Seq:    0,
		Ack:    s.expected,
		Flags:  header.TCPFlagAck,
		Window: s.cfg.ServerWindow,
	}
	if p.Seq == s.expected {
		s.buffer = append(s.buffer, p.Data...)
		s.expected += len(p.Data)
		reply.Ack = s.expected
		if p.HasFlag(header.TCPFlagFin) {
			reply.Flags |= header.TCPFlagFin
			fmt.Fprintf(s.out, "Server receives %q\n", s.buffer)
			s.prevFin = p
			s.prevFinAck = s.expected
			s.havePrevFin = true
			s.resetForNextMessage()
		}
	}
	s.reply(reply, sim, t)
}

// reply draws the loss model once and schedules the acknowledgment's
// delivery at the client, or drops it. A lost ack is recovered by the
// client's retransmission, which the server re-acknowledges.
func (s *Server) reply(p Packet, sim *Simulator, t Clock) {
	if !s.loss.ShouldDeliver() {
		log.Debugf("server: ack lost in transit (%s) at time %d", p, t)
		return
	}
	sim.Schedule(&ReceivePacketEvent{Handler: s.peer, Packet: p}, t+Clock(s.cfg.TransmissionDelay))
}

// resetForNextMessage clears the reassembly state after a completed
// message has been handed to the application.
func (s *Server) resetForNextMessage() {
	s.buffer = nil
	s.expected = 0
}
