// Command warisflash loads a bootstrap image into a radio MCU over the Waris
// bootstrap handshake.
//
// Usage:
//
//	warisflash -config sb9600.yaml -image waris.bin
//
// Settings not given on the command line come from the config file and
// SB9600_* environment variables (see package config).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/bootloader"
	"github.com/moffa90/go-sb9600/config"
	"github.com/moffa90/go-sb9600/link"
	"github.com/moffa90/go-sb9600/logging"
	"github.com/moffa90/go-sb9600/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file (default ./sb9600.yaml or $SB9600_CONFIG)")
	image := flag.String("image", "", "bootstrap image, overrides bootstrap.image")
	port := flag.String("port", "", "serial device, overrides serial.port")
	profile := flag.String("profile", "", "hardware profile, overrides bootstrap.profile")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *image != "" {
		cfg.Bootstrap.Image = *image
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *profile != "" {
		cfg.Bootstrap.Profile = *profile
	}
	if cfg.Bootstrap.Image == "" {
		fmt.Fprintln(os.Stderr, "no bootstrap image given")
		return 2
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("warisflash")

	profiles := bootloader.BuiltinProfiles()
	if cfg.Bootstrap.ProfilesFile != "" {
		if profiles, err = bootloader.LoadProfilesFile(cfg.Bootstrap.ProfilesFile); err != nil {
			log.Error("load profiles", zap.Error(err))
			return 2
		}
	}
	hw, err := profiles.Lookup(cfg.Bootstrap.Profile)
	if err != nil {
		log.Error("select profile", zap.Error(err))
		return 2
	}

	reg := metrics.NewRegistry()
	m := metrics.NewCollector(reg)
	defer func() {
		if cfg.Metrics.Textfile == "" {
			return
		}
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			log.Warn("write metrics", zap.Error(err))
		}
	}()

	l, err := link.Open(cfg.Serial.Port,
		link.WithBaud(cfg.Serial.Baud),
		link.WithBusyLine(cfg.BusyLine()),
		link.WithReadTimeout(cfg.Serial.ReadTimeout),
		link.WithLogger(logger),
	)
	if err != nil {
		log.Error("open serial port", zap.Error(err))
		return 1
	}
	defer l.Close()

	prog := bootloader.New(l,
		bootloader.WithProfile(hw),
		bootloader.WithBootBaud(cfg.Bootstrap.BootBaud),
		bootloader.WithReadyTimeout(cfg.Bootstrap.ReadyTimeout),
		bootloader.WithResponseTimeout(cfg.Bootstrap.ResponseTimeout),
		bootloader.WithPollInterval(cfg.Bootstrap.PollInterval),
		bootloader.WithLogger(logger),
		bootloader.WithMetrics(m),
		bootloader.WithProgressCallback(printProgress),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Waiting for MCU on %s (profile %s, boot baud %d)...\n",
		cfg.Serial.Port, hw.Name, prog.Profile().BootBaud)
	if err := prog.ProgramFile(ctx, cfg.Bootstrap.Image); err != nil {
		fmt.Println()
		log.Error("bootstrap failed", zap.String("phase", bootloader.FailedPhase(err)), zap.Error(err))
		return 1
	}
	fmt.Println("\nBootstrap loaded.")
	return 0
}

func printProgress(p bootloader.Progress) {
	if p.Phase == bootloader.PhaseTransfer && p.BytesWritten > 0 {
		fmt.Printf("\r[%s] %5.1f%%  block %d/%d  %d bytes",
			p.Phase, p.Percentage, p.CurrentBlock+1, p.TotalBlocks, p.BytesWritten)
		return
	}
	fmt.Printf("\n[%s] %5.1f%% @ %d baud", p.Phase, p.Percentage, p.Baud)
}
