package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/console"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(opt *Options) *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live notifications as JSON lines",
		Long: "Connects to the bot backend and prints one JSON object per event\n" +
			"until interrupted. --kind filters by event prefix, e.g. chat. or conn.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, cfg, err := opt.config()
			if err != nil {
				return err
			}
			var b *bus.Bus
			app := fx.New(
				console.Headless(console.Params{Profile: name, Config: cfg, LogConsole: opt.Verbose}),
				fx.Populate(&b),
			)
			if err := app.Err(); err != nil {
				return err
			}
			return watch(cmd.Context(), app, b, kinds, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "event kind prefixes to print (default all)")
	return cmd
}

func watch(ctx context.Context, app *fx.App, b *bus.Bus, kinds []string, w io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, unsub := b.Subscribe("", 1024)
	defer unsub()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		enc := json.NewEncoder(w)
		for {
			select {
			case evt := <-events:
				if !matchKind(evt.Kind, kinds) {
					continue
				}
				if err := enc.Encode(lineFor(evt)); err != nil {
					return err
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}

func matchKind(kind string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

// eventLine is one printed event. Error payloads carry their message in
// Error since error values do not encode.
type eventLine struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Phone   string    `json:"phone_number,omitempty"`
	Payload any       `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func lineFor(evt bus.Event) eventLine {
	line := eventLine{Kind: evt.Kind, Time: evt.Timestamp, Payload: evt.Payload}
	switch p := evt.Payload.(type) {
	case chat.MessageReceived:
		line.Phone = p.PhoneNumber
	case chat.StatusChanged:
		line.Phone = p.PhoneNumber
	case chat.ActionFailed:
		line.Phone, line.Error = p.PhoneNumber, errString(p.Err)
		line.Payload = map[string]string{"action": p.Action}
	case outbox.SendFailed:
		line.Phone, line.Error = p.PhoneNumber, errString(p.Err)
		line.Payload = map[string]string{"request_id": p.RequestID}
	case outbox.SendAccepted:
		line.Phone = p.PhoneNumber
	case ws.Unhealthy:
		line.Error, line.Payload = errString(p.Err), nil
	case roster.LoadFailed:
		line.Error, line.Payload = errString(p.Err), nil
	}
	return line
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
