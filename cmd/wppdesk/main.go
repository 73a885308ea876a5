package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/console"
	"github.com/matheus3301/wppdesk/internal/conversation"
	"github.com/matheus3301/wppdesk/internal/metrics"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/profile"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/tui"
	"github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/matheus3301/wppdesk/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("wppdesk", version)
		return
	}

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(name string) error {
	cfg, err := profile.LoadConfig(name)
	if err != nil {
		return err
	}

	var (
		r      *roster.Projection
		v      *conversation.View
		m      *ws.Manager
		s      *outbox.Sender
		b      *bus.Bus
		logger *zap.Logger
	)
	app := fx.New(
		console.Module(console.Params{Profile: name, Config: cfg}),
		fx.Populate(&r, &v, &m, &s, &b, &logger),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	flash := ui.NewFlashModel()
	vm := model.NewViewModel(name, r, v, m, s, b, flash, logger)
	screen := tui.NewApp(vm, flash)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		logger.Info("serving metrics", zap.String("addr", srv.Addr()))
		g.Go(func() error { return srv.Serve(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		screen.Stop()
		return nil
	})
	g.Go(func() error {
		// Leaving the screen ends the other goroutines.
		defer stop()
		return screen.Run()
	})
	return g.Wait()
}
