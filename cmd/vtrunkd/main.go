// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Command vtrunkd runs the multi-link WireGuard tunneling daemon. The CLI
// is kept intentionally thin: parse flags, load configuration, hand
// control to the orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/vtrunkd/vtrunkd/internal/buildinfo"
	"github.com/vtrunkd/vtrunkd/internal/config"
	"github.com/vtrunkd/vtrunkd/internal/orchestrator"
)

var cli struct {
	LogLevel string           `help:"Log level: debug, info, warn, error." default:"info"`
	Version  kong.VersionFlag `help:"Print the vtrunkd version and exit."`

	Run struct {
		Config      string `help:"Path to the YAML configuration file." required:"" short:"c"`
		MetricsAddr string `help:"Listen address for the Prometheus /metrics endpoint." default:"127.0.0.1:9473"`
	} `cmd:"" help:"Run the tunnel daemon in the foreground."`

	Genkey struct {
		Base64 bool `help:"Also print the base64 form wg(8)/wg-quick(8) expect." name:"base64"`
	} `cmd:"" help:"Generate a new private key and print it hex-encoded."`

	Pubkey struct {
		PrivateKey string `arg:"" help:"Hex-encoded private key."`
		Base64     bool   `help:"Also print the base64 form wg(8)/wg-quick(8) expect." name:"base64"`
	} `cmd:"" help:"Derive a public key from a hex-encoded private key."`

	Genpsk struct{} `cmd:"" help:"Generate a new preshared key and print it hex-encoded."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("vtrunkd"),
		kong.Description("Multi-link WireGuard tunneling daemon."),
		kong.Vars{"version": buildinfo.Version},
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(cli.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	logger.Debugf("vtrunkd %s starting", buildinfo.Version)

	var err error
	switch ctx.Command() {
	case "run":
		err = runDaemon(logger, cli.Run.Config, cli.Run.MetricsAddr)
	case "genkey":
		err = runGenkey(cli.Genkey.Base64)
	case "pubkey <private-key>":
		err = runPubkey(cli.Pubkey.PrivateKey, cli.Pubkey.Base64)
	case "genpsk":
		err = runGenpsk()
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}

	if err != nil {
		// Errors the orchestrator classified as configuration errors (an
		// unknown bonding mode, a link that cannot be resolved or bound)
		// get their own message. Everything else is logged as is: that
		// includes config.Load's validation errors, which already name
		// the bad field, an unreadable config file, and fatal runtime
		// errors from the orchestrator.
		if orchestrator.SeverityOf(err) == orchestrator.SeverityConfig {
			logger.Fatalf("invalid configuration: %v", err)
		}
		logger.Fatal(err)
	}
}

func runGenkey(base64 bool) error {
	kp, err := config.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Println(kp.PrivateKeyHex)
	if base64 {
		b64, err := config.HexToBase64(kp.PrivateKeyHex)
		if err != nil {
			return err
		}
		fmt.Println(b64)
	}
	return nil
}

func runPubkey(privHex string, base64 bool) error {
	pub, err := config.DerivePublicKeyHex(privHex)
	if err != nil {
		return err
	}
	fmt.Println(pub)
	if base64 {
		b64, err := config.HexToBase64(pub)
		if err != nil {
			return err
		}
		fmt.Println(b64)
	}
	return nil
}

func runGenpsk() error {
	psk, err := config.GeneratePresharedKeyHex()
	if err != nil {
		return err
	}
	fmt.Println(psk)
	return nil
}

func runDaemon(logger *log.Logger, path, metricsAddr string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := config.Load(f)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, cfg, logger, metricsAddr)
}
