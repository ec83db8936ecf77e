package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/secretary"
	"github.com/hupe1980/secretary/checkpoint"
	"github.com/hupe1980/secretary/config"
	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/engine"
	"github.com/hupe1980/secretary/internal/telemetry"
	"github.com/hupe1980/secretary/logging"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/model/anthropic"
	"github.com/hupe1980/secretary/model/openai"
)

// app holds the components shared by all subcommands.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	store    core.CheckpointStore
	closers  []func() error
	shutdown telemetry.ShutdownFunc
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	a.logger = logger

	a.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Type {
	case "sqlite":
		s, err := checkpoint.OpenSQLite(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	default:
		a.store = checkpoint.NewInMemoryStore()
	}

	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.Format == "console" {
		return logging.NewConsoleLogger(out, level), nil
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "secretary",
	}), nil
}

func (a *app) newModel(mock bool) (model.Model, error) {
	mc := a.cfg.Model
	if mock || mc.Provider == "mock" {
		return model.NewMockModel("mock"), nil
	}

	if mc.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for provider %s", core.ErrInvalidConfig, mc.Provider)
	}

	switch mc.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = mc.Name
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = int64(mc.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(mc.Name)
			o.APIKey = mc.APIKey
			o.Temperature = mc.Temperature
			o.MaxTokens = int64(mc.MaxTokens)
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown model provider %q", core.ErrInvalidConfig, mc.Provider)
	}
}

func (a *app) newSecretary(m model.Model, threadID string) (*secretary.Secretary, error) {
	chat := a.cfg.Chat

	return secretary.New(m, builtinTools(chat.TimeZone), func(o *secretary.Options) {
		o.Store = a.store
		o.Logger = a.logger
		o.Locale = chat.Locale
		if chat.TimeZone != "" {
			o.TimeZone = chat.TimeZone
		}
		o.MinQueryLength = chat.MinQueryLength
		o.MaxQueryLength = chat.MaxQueryLength
		o.ThreadID = threadID
		o.Engine = append(o.Engine, a.cfg.EngineOptions(), func(eo *engine.Options) {
			eo.Callbacks = a.callbacks()
		})
	})
}

// callbacks mirrors state transitions and rollbacks into debug logs.
func (a *app) callbacks() *engine.CallbackManager {
	cm := engine.NewCallbackManager()
	for _, ct := range []engine.CallbackType{engine.CallbackOnTransition, engine.CallbackOnRollback} {
		cm.RegisterCallback(engine.NewLoggingCallback(ct, func(msg string) {
			a.logger.Debug(msg)
		}))
	}
	return cm
}
