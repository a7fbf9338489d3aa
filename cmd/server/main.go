package main

import (
	"flag"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/logging"
	"github.com/samsamfire/relxfer/pkg/role"
	"github.com/samsamfire/relxfer/pkg/tunables"
)

func main() {
	log.SetLevel(log.InfoLevel)

	configPath := flag.String("config", "", "optional .ini file overriding segment/window/timeout tunables")
	clients := flag.Int("clients", 1, "number of clients to enroll before broadcasting")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		log.Fatal("usage: server [-clients N] <broadcast_port> <input_path>")
	}

	broadcastPort, err := strconv.Atoi(args[0])
	if err != nil {
		log.WithError(err).Fatal("invalid broadcast_port")
	}
	inputPath := args[1]

	cfg, err := tunables.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load tunables")
	}

	payload, err := os.ReadFile(inputPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read input file")
	}

	ep, err := endpoint.Bind("", broadcastPort, cfg.SegmentSize)
	if err != nil {
		log.WithError(err).Fatal("failed to bind broadcast port")
	}
	defer ep.Close()

	sink := logging.New(log.StandardLogger())
	srv := role.NewServer(ep, cfg, sink)

	wanted := *clients
	accept := func(count int) bool {
		sink.Prompt("client enrolled", "count", count, "wanted", wanted)
		return count < wanted
	}

	if err := srv.Run(accept, payload); err != nil {
		log.WithError(err).Fatal("server run failed")
	}
}
