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
	remoteIP := flag.String("remote", "127.0.0.1", "remote peer's IP address")
	flag.Parse()

	args := flag.Args()
	if len(args) != 4 {
		log.Fatal("usage: peer [-remote IP] <user_port> <remote_port> <input_path> <output_path>")
	}

	userPort, err := strconv.Atoi(args[0])
	if err != nil {
		log.WithError(err).Fatal("invalid user_port")
	}
	remotePort, err := strconv.Atoi(args[1])
	if err != nil {
		log.WithError(err).Fatal("invalid remote_port")
	}
	inputPath := args[2]
	outputPath := args[3]

	cfg, err := tunables.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load tunables")
	}

	in, err := os.Open(inputPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open input file")
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		log.WithError(err).Fatal("failed to create output file")
	}
	defer out.Close()

	ep, err := endpoint.Bind("", userPort, cfg.SegmentSize)
	if err != nil {
		log.WithError(err).Fatal("failed to bind user port")
	}
	defer ep.Close()

	sink := logging.New(log.StandardLogger())
	peer := role.NewPeer(ep, cfg, sink)

	if err := peer.Run(*remoteIP, remotePort, in, out); err != nil {
		log.WithError(err).Fatal("peer run failed")
	}
}
