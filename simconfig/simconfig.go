// Package simconfig holds the tunable parameters of the transport
// simulation. Parameters is an immutable value passed into the simulation
// driver and both endpoint constructors; nothing reads mutable globals.
package simconfig

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Compiled defaults. A TOML file loaded with LoadFile overrides them.
const (
	DefaultMaxPacketData         = 4
	DefaultTransmissionDelay     = 5
	DefaultLostPacketProbability = 0.25
	DefaultServerWindow          = 16
)

// Parameters are the knobs of one simulation run. Times are logical clock
// ticks, sizes are bytes.
type Parameters struct {
	// MaxPacketData is the largest payload carried by a single packet.
	MaxPacketData int `toml:"max_packet_data"`

	// TransmissionDelay is the one-way link delay applied to every
	// delivered packet, in ticks.
	TransmissionDelay int64 `toml:"transmission_delay"`

	// LostPacketProbability is the chance that any single transmission
	// is dropped. Each transmission draws independently.
	LostPacketProbability float64 `toml:"lost_packet_probability"`

	// ServerWindow is the receive window the server advertises on every
	// acknowledgment, in bytes.
	ServerWindow int `toml:"server_window"`

	// EventTrace logs every dispatched event with its time.
	EventTrace bool `toml:"event_trace"`
}

// Default returns the compiled-in parameters.
func Default() Parameters {
	return Parameters{
		MaxPacketData:         DefaultMaxPacketData,
		TransmissionDelay:     DefaultTransmissionDelay,
		LostPacketProbability: DefaultLostPacketProbability,
		ServerWindow:          DefaultServerWindow,
	}
}

// RoundTripTime is twice the one-way transmission delay.
func (p Parameters) RoundTripTime() int64 {
	return 2 * p.TransmissionDelay
}

// Timeout is the retransmission timeout, twice the round-trip time.
func (p Parameters) Timeout() int64 {
	return 2 * p.RoundTripTime()
}

// Validate checks that the parameters describe a runnable simulation.
func (p Parameters) Validate() error {
	if p.MaxPacketData < 1 {
		return errors.Errorf("max_packet_data must be at least 1, got %d", p.MaxPacketData)
	}
	if p.TransmissionDelay < 1 {
		return errors.Errorf("transmission_delay must be at least 1, got %d", p.TransmissionDelay)
	}
	if p.LostPacketProbability < 0 || p.LostPacketProbability > 1 {
		return errors.Errorf("lost_packet_probability must be in [0, 1], got %g", p.LostPacketProbability)
	}
	if p.ServerWindow < 1 {
		return errors.Errorf("server_window must be at least 1, got %d", p.ServerWindow)
	}
	return nil
}

// LoadFile reads a TOML parameter file layered over the defaults. Keys not
// present in the file keep their default values.
func LoadFile(path string) (Parameters, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrap(err, "read config file")
	}
	if err := toml.Unmarshal(raw, &p); err != nil {
		return p, errors.Wrapf(err, "parse config file %s", path)
	}
	if err := p.Validate(); err != nil {
		return p, errors.Wrapf(err, "invalid config file %s", path)
	}
	return p, nil
}
