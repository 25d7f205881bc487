package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ptcbox/internal/api"
	"github.com/san-kum/ptcbox/internal/rig"
	"github.com/san-kum/ptcbox/internal/telemetry"
	"github.com/san-kum/ptcbox/internal/tuning"
)

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.API.Addr = addr
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}

	r, err := rig.New(cfg, rig.WithLogger(lg), rig.WithTimeScale(timeScale))
	if err != nil {
		return err
	}
	svc := r.Tuning()

	var pub *telemetry.Publisher
	if cfg.Telemetry.Enabled() {
		client, err := telemetry.Connect(cfg.Telemetry, lg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub = telemetry.NewPublisher(client, cfg.Telemetry, svc,
			telemetry.WithLogger(lg),
			telemetry.WithCommands(svc))
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.Run(ctx) })
	g.Go(func() error {
		return api.New(svc, api.WithLogger(lg), api.WithAccessLog(os.Stderr)).ListenAndServe(ctx, cfg.API.Addr)
	})
	if pub != nil {
		g.Go(func() error { return pub.Run(ctx, cfg.Timing.SlowPeriod) })
	}

	if stdinCmds {
		go commandLoop(ctx, svc, os.Stdin, os.Stdout, lg)
	}

	return g.Wait()
}

// commandLoop answers one text command per input line until EOF.
func commandLoop(ctx context.Context, svc *tuning.Service, in io.Reader, out io.Writer, lg *slog.Logger) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		reply, err := svc.Exec(ctx, sc.Text())
		if err != nil {
			reply = "ERROR:" + err.Error()
		}
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
	}
	if err := sc.Err(); err != nil {
		lg.Warn("command input closed", "err", err)
	}
}
