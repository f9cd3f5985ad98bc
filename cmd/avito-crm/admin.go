package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/services"
)

var errMockMode = errors.New("MOCK_MODE is on; Avito is not contacted")

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-unread",
		Short: "Recompute unread counters from stored messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			n, err := repo.RecomputeAllUnread(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d chats\n", n)
			return nil
		},
	}
}

// newSubscriptionsCmd manages the Avito webhook registration from the shell.
func newSubscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "webhook",
		Aliases: []string{"subscriptions"},
		Short:   "Inspect or change the Avito webhook subscription",
	}

	withSubs := func(fn func(ctx context.Context, subs *services.Subscriptions, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MockMode {
				return errMockMode
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(cmd.Context(), a.subs, cmd.OutOrStdout(), args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show current subscriptions",
			RunE:  withSubs(runWebhookStatus),
		},
		&cobra.Command{
			Use:   "subscribe [url]",
			Short: "Register url, or the configured public webhook URL",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withSubs(runWebhookSubscribe),
		},
		&cobra.Command{
			Use:   "unsubscribe <id>",
			Short: "Remove a subscription by id",
			Args:  cobra.ExactArgs(1),
			RunE: withSubs(func(ctx context.Context, subs *services.Subscriptions, out io.Writer, args []string) error {
				if err := subs.Unsubscribe(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "unsubscribed %s\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ensure",
			Short: "Subscribe the public webhook URL when it is missing",
			RunE: withSubs(func(ctx context.Context, subs *services.Subscriptions, out io.Writer, _ []string) error {
				created, err := subs.Ensure(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created=%t\n", created)
				return nil
			}),
		},
	)
	return cmd
}

func runWebhookStatus(ctx context.Context, subs *services.Subscriptions, out io.Writer, _ []string) error {
	st, err := subs.Status(ctx)
	if err != nil {
		return err
	}
	for i := range st.Subscriptions {
		st.Subscriptions[i].URL = services.RedactKey(st.Subscriptions[i].URL)
		st.Subscriptions[i].Raw = nil
	}
	st.WebhookURL = services.RedactKey(st.WebhookURL)
	return writeJSON(out, st)
}

func runWebhookSubscribe(ctx context.Context, subs *services.Subscriptions, out io.Writer, args []string) error {
	var url string
	if len(args) == 1 {
		url = args[0]
	}
	sub, target, err := subs.Subscribe(ctx, url)
	if err != nil {
		return err
	}
	sub.URL = services.RedactKey(target)
	sub.Raw = nil
	return writeJSON(out, sub)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
