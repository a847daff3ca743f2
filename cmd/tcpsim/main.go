package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/decred/slog"

	protocol "tcpsim/pkg"
	"tcpsim/simconfig"
)

// stdinSource prompts for a message per transfer. An empty line or EOF
// means no more traffic.
type stdinSource struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (s *stdinSource) Next() (string, bool) {
	fmt.Fprint(s.out, "Enter a message: ")
	if !s.scanner.Scan() {
		return "", false
	}
	msg := s.scanner.Text()
	if msg == "" {
		return "", false
	}
	return msg, true
}

func run() error {
	cfgFile := flag.String("config", "", "optional TOML parameter file")
	trace := flag.Bool("trace", false, "trace every dispatched event")
	seed := flag.String("seed", "tcpsim", "name seeding the loss streams; same name, same losses")
	flag.Parse()

	cfg := simconfig.Default()
	if *cfgFile != "" {
		var err error
		if cfg, err = simconfig.LoadFile(*cfgFile); err != nil {
			return err
		}
	}
	if *trace {
		cfg.EventTrace = true
	}

	logger := slog.NewBackend(os.Stderr).Logger("SIM")
	if cfg.EventTrace {
		logger.SetLevel(slog.LevelTrace)
	}
	protocol.SetLog(logger)

	source := &stdinSource{scanner: bufio.NewScanner(os.Stdin), out: os.Stdout}
	client := protocol.NewClient(cfg, source, os.Stdout,
		protocol.NewBernoulliLoss(*seed+"/client", cfg.LostPacketProbability))
	server := protocol.NewServer(cfg, os.Stdout,
		protocol.NewBernoulliLoss(*seed+"/server", cfg.LostPacketProbability))
	client.Connect(server)
	server.Connect(client)

	sim := protocol.NewSimulator(cfg)
	sim.Schedule(&protocol.RequestMessageEvent{Client: client}, 0)
	sim.Run()
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
