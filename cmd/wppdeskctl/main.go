package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/wppdesk/internal/backend"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/logging"
	"github.com/matheus3301/wppdesk/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds the flags shared by every command.
type Options struct {
	Profile string
	JSON    bool
	Timeout time.Duration
	Verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opt := &Options{Timeout: 10 * time.Second}

	root := &cobra.Command{
		Use:           "wppdeskctl",
		Short:         "Script the chat backend of a wppdesk profile",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opt.Profile, "profile", "", "profile name (overrides config default)")
	flags.BoolVar(&opt.JSON, "json", false, "output in JSON format")
	flags.DurationVar(&opt.Timeout, "timeout", opt.Timeout, "deadline for each backend call")
	flags.BoolVarP(&opt.Verbose, "verbose", "v", false, "log to stderr at debug level")

	root.AddCommand(
		newChatsCmd(opt),
		newSendCmd(opt),
		newLockCmd(opt, true),
		newLockCmd(opt, false),
		newViewedCmd(opt),
		newWatchCmd(opt),
		newConfigCmd(opt),
	)
	return root
}

// profileName resolves and validates the profile named by the flags.
func (o *Options) profileName() (string, error) {
	name := profile.Resolve(o.Profile)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// config loads and validates the profile's config.
func (o *Options) config() (string, *config.Config, error) {
	name, err := o.profileName()
	if err != nil {
		return "", nil, err
	}
	cfg, err := profile.LoadConfig(name)
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return name, cfg, nil
}

func (o *Options) logger(name string) (*zap.Logger, error) {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Console: true, Profile: name})
}

// client builds a backend client for the profile.
func (o *Options) client() (*backend.Client, *zap.Logger, error) {
	name, cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	logger, err := o.logger(name)
	if err != nil {
		return nil, nil, err
	}
	return backend.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, nil, logger), logger, nil
}

func (o *Options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.Timeout)
}
