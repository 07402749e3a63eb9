package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hongbao-labs/packetd/internal/config"
	"github.com/hongbao-labs/packetd/internal/core/application"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "packetd",
		Usage:   "gift packet ledger daemon",
		Flags:   config.Flags,
		Action:  start,
		Version: version,
		Commands: []*cli.Command{
			keygenCmd,
			signClaimCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var version = "dev"

func start(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}
	log.Infof("packetd config: %s", cfg)

	svc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create app service: %s", err)
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}

	go func() {
		for events := range svc.GetEventsChannel(ctx.Context) {
			for _, event := range events {
				log.WithField("packet_id", event.GetPacketId()).
					Debugf("event %s", event.GetType())
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	svc.Stop()
	cfg.RepoManager().Close()
	cfg.WalletService().Close()
	return nil
}

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "generate an authority keypair for a new packet",
	Action: func(ctx *cli.Context) error {
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return err
		}

		fmt.Printf(
			"prvkey: %s\npubkey: %s\n",
			hex.EncodeToString(key.Serialize()),
			hex.EncodeToString(key.PubKey().SerializeCompressed()),
		)
		return nil
	},
}

var signClaimCmd = &cli.Command{
	Name:  "sign-claim",
	Usage: "issue a claim token binding a packet to a claimant account",
	Flags: []cli.Flag{prvkeyFlag, packetIdFlag, claimantFlag},
	Action: func(ctx *cli.Context) error {
		buf, err := hex.DecodeString(ctx.String(prvkeyFlagName))
		if err != nil {
			return fmt.Errorf("invalid private key: %s", err)
		}
		key, _ := btcec.PrivKeyFromBytes(buf)

		token, err := application.SignClaim(
			key, ctx.String(packetIdFlagName), ctx.String(claimantFlagName),
		)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
