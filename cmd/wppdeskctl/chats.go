package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/spf13/cobra"
)

func newChatsCmd(opt *Options) *cobra.Command {
	var filter, search string

	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List the chat roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, ok := chat.ParseFilter(filter)
			if !ok {
				return fmt.Errorf("unknown filter %q (all, bot, human)", filter)
			}
			c, logger, err := opt.client()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := opt.context(cmd)
			defer cancel()
			chats, err := c.ListChats(ctx)
			if err != nil {
				return err
			}
			rows := selectChats(chats, chat.Query{Filter: f, Search: search})
			if opt.JSON {
				return writeChatsJSON(cmd.OutOrStdout(), rows)
			}
			return writeChatsTable(cmd.OutOrStdout(), rows, time.Now())
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, bot or human")
	cmd.Flags().StringVarP(&search, "search", "s", "", "match name or phone")
	return cmd
}

func selectChats(chats []*chat.Summary, q chat.Query) []*chat.Summary {
	var out []*chat.Summary
	for _, s := range chats {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

type chatRow struct {
	PhoneNumber   string    `json:"phone_number"`
	Name          string    `json:"name"`
	Handler       string    `json:"handler"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitzero"`
	Messages      int       `json:"messages"`
}

func toRow(s *chat.Summary) chatRow {
	handler := "bot"
	if s.Locked {
		handler = "human"
	}
	return chatRow{
		PhoneNumber:   s.PhoneNumber,
		Name:          s.DisplayName(),
		Handler:       handler,
		LastMessage:   s.LastMessagePreview,
		LastMessageAt: s.LastMessageAt,
		Messages:      len(s.Messages),
	}
}

func writeChatsJSON(w io.Writer, chats []*chat.Summary) error {
	rows := make([]chatRow, 0, len(chats))
	for _, s := range chats {
		rows = append(rows, toRow(s))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeChatsTable(w io.Writer, chats []*chat.Summary, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHONE\tNAME\tHANDLER\tLAST\tAGE")
	for _, s := range chats {
		r := toRow(s)
		age := "-"
		if !r.LastMessageAt.IsZero() {
			age = now.Sub(r.LastMessageAt).Truncate(time.Second).String()
		}
		fmt.Fprintf(tw, "+%s\t%s\t%s\t%s\t%s\n", r.PhoneNumber, r.Name, r.Handler, oneLine(r.LastMessage, 40), age)
	}
	return tw.Flush()
}

func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return string(r)
}
