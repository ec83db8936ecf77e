package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/secretary"
	"github.com/hupe1980/secretary/core"
)

type chatOptions struct {
	mock     bool
	threadID string
	artifact bool
	userID   string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [query]",
		Short: "Ask a single question or start an interactive session",
		Long: `Without arguments chat reads queries from stdin, one per line.
Interactive commands: /new starts a new thread, /thread prints the current
thread id, /exit quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.app.newModel(opts.mock)
			if err != nil {
				return err
			}

			s, err := root.app.newSecretary(m, opts.threadID)
			if err != nil {
				return err
			}

			runtime := core.RuntimeContext{}
			if opts.userID != "" {
				runtime["user_id"] = opts.userID
			}

			c := &chatSession{
				s:        s,
				out:      cmd.OutOrStdout(),
				runtime:  runtime,
				artifact: opts.artifact,
				timeout:  root.app.cfg.Chat.Timeout,
			}

			if len(args) > 0 {
				return c.ask(cmd.Context(), strings.Join(args, " "))
			}
			return c.repl(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use a scripted mock model instead of a provider")
	cmd.Flags().StringVar(&opts.threadID, "thread", "", "continue an existing thread")
	cmd.Flags().BoolVar(&opts.artifact, "artifact", false, "print the reply artifact as JSON")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id passed to tools in the runtime context")

	return cmd
}

type chatSession struct {
	s        *secretary.Secretary
	out      io.Writer
	runtime  core.RuntimeContext
	artifact bool
	timeout  time.Duration
}

func (c *chatSession) ask(ctx context.Context, query string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.s.Chat(ctx, query, c.runtime)
	if err != nil {
		return err
	}

	prefix := ""
	if reply.IsError {
		prefix = "! "
	}
	fmt.Fprintf(c.out, "%s%s\n", prefix, reply.Text())

	if c.artifact && len(reply.Artifact) > 0 {
		data, err := json.MarshalIndent(reply.Artifact, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\n", data)
	}
	return nil
}

func (c *chatSession) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "thread %s\n", c.s.ThreadID())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			fmt.Fprintf(c.out, "thread %s\n", c.s.NewThread())
			continue
		case "/thread":
			fmt.Fprintln(c.out, c.s.ThreadID())
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			var inputErr *secretary.InputError
			if errors.As(err, &inputErr) {
				fmt.Fprintf(c.out, "! %v\n", err)
				continue
			}
			return err
		}
	}
}
