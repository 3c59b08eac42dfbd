package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli"
	"github.com/valerio/go-lr35902/lr35902"
	"github.com/valerio/go-lr35902/lr35902/backend"
	"github.com/valerio/go-lr35902/lr35902/backend/headless"
	"github.com/valerio/go-lr35902/lr35902/backend/terminal"
	"github.com/valerio/go-lr35902/lr35902/cartridge"
	"github.com/valerio/go-lr35902/lr35902/remote"
)

func main() {
	app := cli.NewApp()
	app.Name = "lr35902"
	app.Description = "A Sharp LR35902 CPU core with a step debugger"
	app.Usage = "lr35902 [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file (.gb, .gbc, or a .zip/.gz/.7z archive holding one)",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without the terminal debugger",
		},
		cli.IntFlag{
			Name:  "steps",
			Usage: "Number of instructions to run in headless mode",
			Value: 1000,
		},
		cli.StringFlag{
			Name:  "until-pc",
			Usage: "Stop the headless run when PC reaches this address (e.g. 0x0150)",
		},
		cli.StringFlag{
			Name:  "snapshot",
			Usage: "Write the final CPU state and disassembly to this file in headless mode",
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "Log every executed instruction at debug level",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn or error",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "verify-checksums",
			Usage: "Refuse to run cartridges whose header or global checksum does not match",
		},
		cli.BoolFlag{
			Name:  "strict-io",
			Usage: "Fail instructions touching I/O registers no device handles (default in -tags dev builds)",
		},
		cli.StringFlag{
			Name:  "serve",
			Usage: "Serve a websocket debugger on this address (e.g. :8090) instead of the terminal",
		},
		cli.DurationFlag{
			Name:  "interval",
			Usage: "Refresh interval of the terminal debugger",
			Value: time.Second / 30,
		},
	}
	app.Action = runEmulator

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	interactive := !c.Bool("headless") && c.String("serve") == ""

	var logger *slog.Logger
	var tui *terminal.Backend
	if interactive {
		tui = terminal.New()
		logger = tui.Logger()
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	slog.SetDefault(logger)

	cart, err := cartridge.Load(romPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, cart.Header())

	if c.Bool("verify-checksums") {
		if err := cart.VerifyChecksums(); err != nil {
			return err
		}
		slog.Info("Checksums verified")
	}

	opts := []lr35902.Option{
		lr35902.WithLogger(logger),
		lr35902.WithTrace(c.Bool("trace")),
	}
	if c.IsSet("strict-io") {
		opts = append(opts, lr35902.WithStrictIO(c.Bool("strict-io")))
	}
	emu := lr35902.New(cart, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case c.String("serve") != "":
		return serve(ctx, c.String("serve"), emu, logger)
	case c.Bool("headless"):
		return runHeadless(ctx, c, emu, cart.Title())
	default:
		return backend.Run(ctx, emu, tui, backend.Config{
			Title:    cart.Title(),
			Interval: c.Duration("interval"),
			// the CPU runs roughly 1M instructions per second
			StepsPerUpdate: max(1, int(c.Duration("interval")/time.Microsecond)),
		})
	}
}

func runHeadless(ctx context.Context, c *cli.Context, emu *lr35902.Emulator, title string) error {
	steps := c.Int("steps")
	if steps <= 0 {
		return errors.New("headless mode requires --steps with a positive value")
	}

	config := headless.Config{MaxSteps: steps}
	if s := c.String("until-pc"); s != "" {
		pc, err := parseAddress(s)
		if err != nil {
			return err
		}
		config.UntilPC, config.Target = pc, true
	}

	runErr := backend.Run(ctx, emu, headless.New(config), backend.Config{Title: title, StopOnError: true})

	if path := c.String("snapshot"); path != "" {
		if err := saveSnapshot(path, emu.ExtractDebugData()); err != nil {
			slog.Error("Failed to save snapshot", "path", path, "error", err)
		} else {
			slog.Info("Saved state snapshot", "path", path)
		}
	}
	return runErr
}

func serve(ctx context.Context, addr string, emu *lr35902.Emulator, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           remote.NewServer(emu, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving websocket debugger", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
