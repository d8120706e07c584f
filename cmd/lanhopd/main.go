// Command lanhopd is a demo LAN peer-to-peer node: it brings up
// discovery and connection handling, persists its configuration and
// known peers, and prints the events it observes. Grounded on the
// teacher's cli.v1 flag style (pkgs/trace/service.go's
// EnableTraceFlag/HistoryDirFlag declarations).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/lanhop/core/discovery"
	"github.com/lanhop/core/lanhop"
	"github.com/lanhop/core/log"
	"github.com/lanhop/core/p2p"
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/storage"
)

var (
	nameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "this node's display name",
		Value: "lanhop-node",
	}
	idFlag = cli.StringFlag{
		Name:  "id",
		Usage: "this node's peer id (generated and persisted on first run if unset)",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for the node's LevelDB configuration store",
		Value: "./lanhopd-data",
	}
	multicastPortFlag = cli.IntFlag{
		Name:  "multicast-port",
		Usage: "discovery multicast port",
		Value: 50692,
	}
	pairFlag = cli.StringFlag{
		Name:  "pair",
		Usage: "path to a QR pairing payload (JSON) to pair with on startup",
	}
	autoAcceptFlag = cli.BoolFlag{
		Name:  "auto-accept",
		Usage: "automatically accept inbound LaunchUri requests instead of asking",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "lanhopd"
	app.Usage = "run a LAN peer-to-peer discovery and pairing node"
	app.Flags = []cli.Flag{nameFlag, idFlag, dataDirFlag, multicastPortFlag, pairFlag, autoAcceptFlag}
	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:  "qr",
			Usage: "print this node's pairing payload as JSON, to share out of band",
			Flags: []cli.Flag{nameFlag, idFlag, dataDirFlag},
			Action: func(c *cli.Context) error {
				return printQR(c)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lanhopd:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := log.New("lanhopd")

	store, err := storage.Open(c.String(dataDirFlag.Name))
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	defer store.Close()

	id := peer.Id(c.String(idFlag.Name))
	if id == "" {
		cfg, err := store.GetConfig()
		if err != nil {
			return err
		}
		if cfg != nil && cfg.ID != "" {
			id = cfg.ID
		} else {
			id = peer.Id(fmt.Sprintf("%s-%d", c.String(nameFlag.Name), time.Now().UnixNano()))
		}
	}

	group := &net.UDPAddr{IP: net.ParseIP(discovery.DefaultMulticastIP), Port: c.Int(multicastPortFlag.Name)}
	mgr, err := p2p.Start(p2p.Config{
		ID:             id,
		Name:           c.String(nameFlag.Name),
		Device:         peer.DeviceDesktop,
		MulticastGroup: group,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("starting p2p manager: %w", err)
	}
	defer mgr.Stop()

	node, err := lanhop.New(mgr, store, logger)
	if err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer node.Stop()

	if err := node.SetConfig(storage.NodeConfig{
		Name:       c.String(nameFlag.Name),
		ID:         id,
		AutoAccept: c.Bool(autoAcceptFlag.Name),
	}); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	if path := c.String(pairFlag.Name); path != "" {
		payload, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("reading pairing payload: %w", err)
		}
		if err := node.Pair(payload); err != nil {
			return fmt.Errorf("pairing: %w", err)
		}
		logger.Info("paired from ", path)
	}

	node.StartDiscovery()
	logger.WithField("id", id).Info("lanhopd started")

	go logEvents(logger, node)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down")
	case <-ctx.Done():
	}
	return nil
}

// printQR writes this node's pairing payload to stdout without bringing
// up the full p2p stack: just enough identity to let a peer record this
// node as known (its address is re-learned later via discovery).
func printQR(c *cli.Context) error {
	store, err := storage.Open(c.String(dataDirFlag.Name))
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	defer store.Close()

	id := peer.Id(c.String(idFlag.Name))
	if id == "" {
		cfg, err := store.GetConfig()
		if err != nil {
			return err
		}
		if cfg != nil && cfg.ID != "" {
			id = cfg.ID
		} else {
			id = peer.Id(fmt.Sprintf("%s-%d", c.String(nameFlag.Name), time.Now().UnixNano()))
		}
	}

	secret, err := lanhop.RandomSecret()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(lanhop.QRPayload{
		Secret: secret,
		Peer:   peer.Metadata{ID: id, Name: c.String(nameFlag.Name), Type: peer.DeviceDesktop},
	})
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

func logEvents(logger *logrus.Entry, node *lanhop.Node) {
	for ev := range node.Events() {
		logger.WithField("event", fmt.Sprintf("%#v", ev)).Info("core event")
	}
}
