package protocol

import "github.com/iti/rngstream"

// LossModel decides, once per transmission, whether a packet crosses the
// link. Every draw is independent and identically distributed regardless of
// direction or retry count. A dropped packet simply produces no delivery
// event; the retransmission timer is the sole recovery path.
type LossModel interface {
	ShouldDeliver() bool
}

// BernoulliLoss drops each transmission with a fixed probability. Draws
// come from a named rngstream, so two runs constructed with the same stream
// name see the identical loss sequence.
type BernoulliLoss struct {
	prob float64
	rng  *rngstream.RngStream
}

// NewBernoulliLoss returns a loss model dropping packets with probability
// prob, drawing from the stream identified by name.
func NewBernoulliLoss(name string, prob float64) *BernoulliLoss {
	return &BernoulliLoss{prob: prob, rng: rngstream.New(name)}
}

// ShouldDeliver draws once and reports whether the packet survives.
func (b *BernoulliLoss) ShouldDeliver() bool {
	return b.rng.RandU01() >= b.prob
}

// DeliverAll is a loss model that never drops. Used for loss-free runs and
// to keep one direction of the link lossless in tests.
type DeliverAll struct{}

func (DeliverAll) ShouldDeliver() bool { return true }

// DropAll is a loss model that drops every transmission.
type DropAll struct{}

func (DropAll) ShouldDeliver() bool { return false }
