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
	serverIP := flag.String("server", "127.0.0.1", "server IP address")
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		log.Fatal("usage: client [-server IP] <client_port> <broadcast_port> <output_path>")
	}

	clientPort, err := strconv.Atoi(args[0])
	if err != nil {
		log.WithError(err).Fatal("invalid client_port")
	}
	broadcastPort, err := strconv.Atoi(args[1])
	if err != nil {
		log.WithError(err).Fatal("invalid broadcast_port")
	}
	outputPath := args[2]

	cfg, err := tunables.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load tunables")
	}

	ep, err := endpoint.Bind("", clientPort, cfg.SegmentSize)
	if err != nil {
		log.WithError(err).Fatal("failed to bind client port")
	}
	defer ep.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		log.WithError(err).Fatal("failed to create output file")
	}
	defer out.Close()

	sink := logging.New(log.StandardLogger())
	client := role.NewClient(ep, cfg, sink)

	if err := client.Run(*serverIP, broadcastPort, out); err != nil {
		log.WithError(err).Fatal("client run failed")
	}
}
