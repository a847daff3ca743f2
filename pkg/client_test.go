package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/netstack/tcpip/header"

	"tcpsim/simconfig"
)

func newTestClient(cfg simconfig.Parameters, msgs []string, loss LossModel) (*Client, *recordingHandler, *Simulator, *bytes.Buffer) {
	out := &bytes.Buffer{}
	client := NewClient(cfg, &scriptSource{msgs: msgs}, out, loss)
	peer := &recordingHandler{}
	client.Connect(peer)
	sim := NewSimulator(cfg)
	return client, peer, sim, out
}

func TestRequestMessageStartsSession(t *testing.T) {
	client, _, sim, out := newTestClient(simconfig.Default(), []string{"HELLO"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	if !strings.Contains(out.String(), `Client sends "HELLO"`) {
		t.Errorf("missing send report:\n%s", out.String())
	}
	if string(client.msgBytes) != "HELLO" {
		t.Errorf("msgBytes = %q, want HELLO", client.msgBytes)
	}
	// Two segments, each with a delivery and a timer scheduled.
	if sim.Pending() != 4 {
		t.Errorf("pending events = %d, want 4 (2 deliveries + 2 timers)", sim.Pending())
	}
}

func TestSegmentationBoundaries(t *testing.T) {
	client, peer, sim, _ := newTestClient(simconfig.Default(), []string{"HELLO"}, DeliverAll{})
	client.RequestMessage(sim, 0)
	// Drain the deliveries only; the recorder never acks, so running past
	// the first timeout would retransmit forever.
	sim.RunUntil(simconfig.DefaultTransmissionDelay)

	if len(peer.packets) != 2 {
		t.Fatalf("sent %d packets, want 2", len(peer.packets))
	}
	first, second := peer.packets[0], peer.packets[1]
	if first.Seq != 0 || string(first.Data) != "HELL" || first.HasFlag(header.TCPFlagFin) {
		t.Errorf("first segment = %s, want seq=0 data=\"HELL\" without FIN", first)
	}
	if second.Seq != 4 || string(second.Data) != "O" || !second.HasFlag(header.TCPFlagFin) {
		t.Errorf("second segment = %s, want seq=4 data=\"O\" with FIN", second)
	}
}

func TestCumulativeAckAdvances(t *testing.T) {
	cfg := simconfig.Default()
	cfg.ServerWindow = 4
	client, _, sim, _ := newTestClient(cfg, []string{"HELLOWORLD"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	if client.sendNext != 4 || client.outstanding != 4 {
		t.Fatalf("after initial send: sendNext=%d outstanding=%d, want 4/4", client.sendNext, client.outstanding)
	}

	client.ReceivePacket(Packet{Seq: 0, Ack: 4, Flags: header.TCPFlagAck, Window: 4}, sim, 10)
	if client.una != 4 {
		t.Errorf("una = %d, want 4", client.una)
	}
	if client.sendNext != 8 {
		t.Errorf("sendNext = %d, want 8 (window refilled)", client.sendNext)
	}
	if client.ack != 1 {
		t.Errorf("ack = %d, want peer seq+1 = 1", client.ack)
	}
}

func TestWindowUpdateFromAck(t *testing.T) {
	cfg := simconfig.Default()
	cfg.ServerWindow = 4
	client, _, sim, _ := newTestClient(cfg, []string{"HELLOWORLD"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	// The ack opens a wider window; the client must fill it at once.
	client.ReceivePacket(Packet{Seq: 0, Ack: 4, Flags: header.TCPFlagAck, Window: 12}, sim, 10)
	if client.peerWindow != 12 {
		t.Errorf("peerWindow = %d, want 12", client.peerWindow)
	}
	if client.outstanding != 6 {
		// Bytes 4..10 all fit in the new window.
		t.Errorf("outstanding = %d, want 6", client.outstanding)
	}
	if client.sendNext != 10 {
		t.Errorf("sendNext = %d, want 10", client.sendNext)
	}
}

func TestTimeoutResendsUnacked(t *testing.T) {
	client, _, sim, _ := newTestClient(simconfig.Default(), []string{"AB"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	before := sim.Pending()
	client.PacketTimeout(0, client.epoch, sim, 20)
	// A resend schedules one delivery and one fresh timer.
	if sim.Pending() != before+2 {
		t.Errorf("pending events = %d after timeout, want %d", sim.Pending(), before+2)
	}
}

func TestTimeoutNoopOnAcked(t *testing.T) {
	client, _, sim, _ := newTestClient(simconfig.Default(), []string{"HELLO"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	// Ack the first segment only.
	client.ReceivePacket(Packet{Seq: 0, Ack: 4, Flags: header.TCPFlagAck, Window: 16}, sim, 10)
	before := sim.Pending()
	client.PacketTimeout(0, client.epoch, sim, 20)
	if sim.Pending() != before {
		t.Error("timeout for an acknowledged packet must be a no-op")
	}
	// The unacked FIN segment still retransmits.
	client.PacketTimeout(4, client.epoch, sim, 20)
	if sim.Pending() != before+2 {
		t.Error("timeout for an unacknowledged packet must resend")
	}
}

func TestTimeoutStaleEpochNoop(t *testing.T) {
	client, _, sim, _ := newTestClient(simconfig.Default(), []string{"AB"}, DeliverAll{})
	client.RequestMessage(sim, 0)
	oldEpoch := client.epoch

	// Complete the message; the session resets and the epoch moves on.
	client.ReceivePacket(Packet{Seq: 0, Ack: 2, Flags: header.TCPFlagAck | header.TCPFlagFin, Window: 16}, sim, 10)
	if client.msgBytes != nil {
		t.Fatal("session should be reset after full acknowledgment")
	}

	before := sim.Pending()
	client.PacketTimeout(0, oldEpoch, sim, 20)
	if sim.Pending() != before {
		t.Error("timer from a finished session must be ignored")
	}
}

func TestStaleAckIgnored(t *testing.T) {
	client, _, sim, _ := newTestClient(simconfig.Default(), []string{"AB"}, DeliverAll{})
	client.RequestMessage(sim, 0)

	// An ack beyond the message length can only belong to a previous,
	// longer exchange still echoing through the link.
	client.ReceivePacket(Packet{Seq: 0, Ack: 5, Flags: header.TCPFlagAck, Window: 16}, sim, 10)
	if client.una != 0 {
		t.Errorf("stale ack moved una to %d", client.una)
	}
	if client.msgBytes == nil {
		t.Error("stale ack must not complete the session")
	}
}

func TestLostTransmissionSchedulesNoDelivery(t *testing.T) {
	client, peer, sim, _ := newTestClient(simconfig.Default(), []string{"AB"}, DropAll{})
	client.RequestMessage(sim, 0)

	// Only the retransmission timer is queued; no delivery event exists.
	if sim.Pending() != 1 {
		t.Errorf("pending events = %d, want 1 (timer only)", sim.Pending())
	}
	sim.RunUntil(10)
	if len(peer.packets) != 0 {
		t.Errorf("dropped packet was delivered: %v", peer.packets)
	}
}

func TestSynAlternatesAcrossMessages(t *testing.T) {
	client, peer, sim, _ := newTestClient(simconfig.Default(), []string{"AB", "CD"}, DeliverAll{})
	client.RequestMessage(sim, 0)
	sim.RunUntil(simconfig.DefaultTransmissionDelay)
	if first := peer.packets[0]; first.HasFlag(header.TCPFlagSyn) {
		t.Errorf("first message carries SYN: %s", first)
	}

	client.ReceivePacket(Packet{Seq: 0, Ack: 2, Flags: header.TCPFlagAck | header.TCPFlagFin, Window: 16}, sim, 10)
	sim.RunUntil(15) // the follow-up prompt at 10 and its delivery at 15
	if len(peer.packets) != 2 {
		t.Fatalf("recorded %d packets, want 2", len(peer.packets))
	}
	if second := peer.packets[1]; !second.HasFlag(header.TCPFlagSyn) {
		t.Errorf("second message must flip the SYN bit: %s", second)
	}
}
