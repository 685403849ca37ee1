package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fallback-chat/internal/repository"
)

func newEventsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <request-id>",
		Short: "Show the recorded generation events of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := root.load(cmd.Context())
			if err != nil {
				return err
			}
			if a.Events == nil {
				return errors.New("EVENTS_TABLE is not configured")
			}
			return printEvents(cmd.Context(), cmd.OutOrStdout(), a.Events, args[0])
		},
	}
}

func printEvents(ctx context.Context, w io.Writer, reader repository.EventReader, requestID string) error {
	summary, ok, err := reader.GetSummary(ctx, requestID)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(w, "request %s: %s", summary.RequestID, summary.Outcome)
		if summary.Model != "" {
			fmt.Fprintf(w, " (%s)", summary.Model)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "request %s: no outcome recorded\n", requestID)
	}

	events, err := reader.ListEvents(ctx, requestID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tMODEL\tREASON\tSTATUS\tLATENCY")
	for _, evt := range events {
		status := "-"
		if evt.StatusCode != 0 {
			status = fmt.Sprintf("%d", evt.StatusCode)
		}
		reason := evt.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			evt.OccurredAt.UTC().Format(time.RFC3339),
			evt.Kind, evt.Model, reason, status, evt.Latency.Round(time.Millisecond))
	}
	return tw.Flush()
}
