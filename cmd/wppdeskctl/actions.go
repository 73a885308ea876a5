package main

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/spf13/cobra"
)

func newSendCmd(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <phone> <text>...",
		Short: "Send a message as the operator",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := opt.client()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := opt.context(cmd)
			defer cancel()
			s := outbox.NewSender(c, nil, logger)
			requestID, err := s.Send(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", requestID)
			return nil
		},
	}
}

func newLockCmd(opt *Options, lock bool) *cobra.Command {
	use, short := "unlock <phone>", "Hand a chat back to the bot"
	if lock {
		use, short = "lock <phone>", "Take a chat over from the bot"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := opt.client()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := opt.context(cmd)
			defer cancel()
			call := c.Unlock
			if lock {
				call = c.Lock
			}
			if err := call(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sed +%s\n", strings.Fields(use)[0], args[0])
			return nil
		},
	}
}

func newViewedCmd(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "viewed <phone>",
		Short: "Mark a chat's messages as viewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := opt.client()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := opt.context(cmd)
			defer cancel()
			return c.MarkViewed(ctx, args[0])
		},
	}
}
