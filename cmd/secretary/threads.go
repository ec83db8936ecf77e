package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/secretary/core"
)

func newThreadsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect stored conversation threads",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List threads with their latest checkpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "THREAD\tMESSAGES\tUPDATED")
				for tc, err := range root.app.store.List(cmd.Context()) {
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n",
						tc.ThreadID, len(tc.Checkpoint.Messages), tc.Checkpoint.CreatedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <thread-id>",
			Short: "Print the committed messages of a thread",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cp, err := root.app.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if cp == nil {
					return fmt.Errorf("thread %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				for _, msg := range cp.Messages {
					fmt.Fprintf(out, "[%s] %s\n", describe(msg), msg.Content)
				}
				if len(cp.Artifact) > 0 {
					fmt.Fprintf(out, "artifact: %v\n", cp.Artifact)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete all threads and their audit log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := root.app.store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			},
		},
	)

	return cmd
}

func describe(msg core.Message) string {
	switch {
	case msg.Role == core.RoleTool && msg.IsError:
		return fmt.Sprintf("%s:%s!", msg.Role, msg.ToolName)
	case msg.Role == core.RoleTool:
		return fmt.Sprintf("%s:%s", msg.Role, msg.ToolName)
	case msg.HasToolCalls():
		names := make([]string, len(msg.ToolCalls))
		for i, c := range msg.ToolCalls {
			names[i] = c.Name
		}
		return fmt.Sprintf("%s->%v", msg.Role, names)
	default:
		return string(msg.Role)
	}
}
