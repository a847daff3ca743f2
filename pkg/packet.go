package protocol

import (
	"fmt"
	"strings"

	"github.com/google/netstack/tcpip/header"
)

// Packet is the unit of transfer between the two endpoints. Packets never
// leave process memory and have no wire encoding; a Packet is a plain value
// and is never mutated after construction. Seq and Ack are byte offsets
// into the message being transported, Window is the sender's advertised
// receive window in bytes.
//
// Flag bits use the TCP flag constants from netstack's header package
// (header.TCPFlagAck, header.TCPFlagFin, header.TCPFlagSyn).
type Packet struct {
	Seq    int
	Ack    int
	Flags  uint8
	Window int
	Data   []byte
}

// HasFlag reports whether all bits of flag are set.
func (p Packet) HasFlag(flag uint8) bool {
	return p.Flags&flag == flag
}

// SameIdentity reports whether two packets are the same for deduplication
// purposes: identity is (seq, data length, flags), not object identity.
func (p Packet) SameIdentity(other Packet) bool {
	return p.Seq == other.Seq &&
		len(p.Data) == len(other.Data) &&
		p.Flags == other.Flags
}

func (p Packet) flagNames() string {
	var names []string
	if p.HasFlag(header.TCPFlagSyn) {
		names = append(names, "SYN")
	}
	if p.HasFlag(header.TCPFlagAck) {
		names = append(names, "ACK")
	}
	if p.HasFlag(header.TCPFlagFin) {
		names = append(names, "FIN")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}

// String renders the packet for the event trace.
func (p Packet) String() string {
	if len(p.Data) == 0 {
		return fmt.Sprintf("seq=%d ack=%d %s win=%d", p.Seq, p.Ack, p.flagNames(), p.Window)
	}
	return fmt.Sprintf("seq=%d ack=%d %s win=%d data=%q", p.Seq, p.Ack, p.flagNames(), p.Window, p.Data)
}
