package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/hupe1980/secretary/config"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
	storeDSN   string

	app *app
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secretary",
		Short: "Virtual secretary backed by an LLM and a set of tools",
		Long: `Secretary answers natural language requests by letting a language model call
tools. Every tool result is checked before it is shown, and failed attempts
never reach the stored conversation history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load(cmd.Context(), cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yaml)")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level")
	flags.StringVar(&opts.storeDSN, "db", "", "use a SQLite checkpoint store at this path")

	cmd.AddCommand(
		newChatCmd(opts),
		newThreadsCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// execute runs cmd and closes the app afterwards, also when the command
// failed. cobra skips post-run hooks after a RunE error.
func (o *rootOptions) execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if o.app == nil {
		return err
	}
	if closeErr := o.app.Close(context.Background()); closeErr != nil {
		cmd.PrintErrln("Error:", closeErr)
		return errors.Join(err, closeErr)
	}
	return err
}

func (o *rootOptions) load(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.storeDSN != "" {
		cfg.Store.Type = "sqlite"
		cfg.Store.DSN = o.storeDSN
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.app, err = newApp(ctx, cfg, cmd.ErrOrStderr())
	return err
}
