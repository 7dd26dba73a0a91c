// Package app wires the signal registry, configuration, Lua scripts and the
// relay demo into the rpgtask application.
package app

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dshills/rpgtask/internal/config"
	"github.com/dshills/rpgtask/internal/logging"
	"github.com/dshills/rpgtask/internal/script"
	"github.com/dshills/rpgtask/internal/signal"
)

// Signals published by the application itself.
const (
	// SignalConfigChanged is sent after the configuration file was reloaded.
	SignalConfigChanged = "config.changed"

	// SenderConfig is the sender of SignalConfigChanged.
	SenderConfig = "config"
)

// Application owns every long-lived component.
type Application struct {
	mu sync.Mutex

	// Core infrastructure
	config   *config.Config
	logger   *logging.Logger
	registry *signal.Registry

	// Signal handlers
	first   *First
	second  *Second
	third   *Third
	scripts []*script.Handler

	watcher *config.Watcher

	// State
	running  atomic.Bool
	shutdown sync.Once

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// ScriptsDir overrides the configured script directory when set.
	ScriptsDir string

	// Watch enables live reload even if the configuration does not.
	Watch bool

	// Wait keeps Run blocked until its context is done.
	Wait bool

	// Name and Age are introduced by the relay demo.
	Name string
	Age  int

	// Output receives the relay transcript. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Name == "" {
		opts.Name = "Ivan"
	}
	if opts.Age == 0 {
		opts.Age = 23
	}

	app := &Application{opts: opts}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.override(cfg)
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg

	// 2. Logger
	lc := cfg.LoggerConfig()
	lc.Output = app.opts.LogOutput
	app.logger = logging.New(lc)

	// 3. Signal registry
	app.registry = signal.New(
		signal.WithLogger(app.logger),
		signal.WithPolicy(cfg.Policy()),
		signal.WithDefaultWeak(cfg.Dispatch.Weak),
	)

	// 4. Scripts
	if cfg.Scripts.Dir != "" {
		scripts, err := script.LoadDir(cfg.Scripts.Dir,
			script.WithTimeout(cfg.Scripts.Timeout.Duration),
			script.WithLogger(app.logger),
		)
		if err != nil {
			return &InitError{Component: "scripts", Err: err}
		}
		app.scripts = scripts
	}

	app.logger.Info("application initialized",
		"policy", cfg.Policy().String(),
		"weak", cfg.Dispatch.Weak,
		"scripts", len(app.scripts),
	)
	return nil
}

// Run connects every handler, starts the config watcher when enabled and
// runs the relay demo. With Options.Wait it then blocks until ctx is done.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.wire(); err != nil {
		return err
	}

	if app.config.Watch && app.opts.ConfigPath != "" {
		w, err := config.NewWatcher(app.opts.ConfigPath, app.reload,
			config.WithErrorHandler(app.reloadFailed),
			config.WithWatcherLogger(app.logger),
		)
		if err != nil {
			return &InitError{Component: "config watcher", Err: err}
		}
		app.mu.Lock()
		app.watcher = w
		app.mu.Unlock()
	}

	if _, err := app.first.Introduce(ctx, app.opts.Name, app.opts.Age); err != nil {
		return err
	}

	if app.opts.Wait {
		<-ctx.Done()
	}
	return nil
}

// wire subscribes the relays, the scripts and the config listener. It
// only does so once per application.
func (app *Application) wire() error {
	out := newTranscript(app.opts.Output)

	app.mu.Lock()
	if app.first != nil {
		app.mu.Unlock()
		return nil
	}
	app.first = newFirst(app.registry, out)
	app.second = newSecond(app.registry, out)
	app.third = newThird(out)
	app.mu.Unlock()

	listeners := []signal.Listener{
		app.first.Listener(),
		app.second.Listener(),
		app.third.Listener(),
		signal.Listen(SignalConfigChanged, signal.Method(app, (*Application).onConfigChanged),
			signal.WithSender(SenderConfig)),
	}
	for _, s := range app.scripts {
		listeners = append(listeners, s.Listener())
	}

	for _, l := range listeners {
		if err := l.Subscribe(app.registry); err != nil {
			return err
		}
	}
	return nil
}

// override applies the command line options on top of cfg.
func (app *Application) override(cfg *config.Config) {
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = app.opts.LogLevel
	}
	if app.opts.ScriptsDir != "" {
		cfg.Scripts.Dir = app.opts.ScriptsDir
	}
	if app.opts.Watch {
		cfg.Watch = true
	}
}

// reload is called by the watcher with a freshly loaded configuration.
func (app *Application) reload(cfg *config.Config) {
	app.override(cfg)

	app.mu.Lock()
	app.config = cfg
	app.mu.Unlock()

	ev := signal.Event{
		"path":   app.opts.ConfigPath,
		"level":  cfg.Logging.Level,
		"policy": cfg.Dispatch.Policy,
	}
	if _, err := app.registry.Send(context.Background(), ev, SignalConfigChanged, signal.WithSender(SenderConfig)); err != nil {
		app.logger.Warn("config change not delivered", "error", err)
	}
}

func (app *Application) reloadFailed(err error) {
	app.logger.Error("config reload failed", "error", err)
}

// onConfigChanged applies the settings that can change while running.
func (app *Application) onConfigChanged(ctx context.Context, ev signal.Event) (any, error) {
	if app.opts.LogLevel != "" {
		return app.logger.Level().String(), nil
	}
	level := logging.ParseLevel(ev.GetString("level"))
	app.logger.SetLevel(level)
	app.logger.Info("log level changed", "level", level.String())
	return level.String(), nil
}

// Shutdown stops the watcher, closes the scripts and clears the registry.
// It is safe to call more than once.
func (app *Application) Shutdown() {
	app.shutdown.Do(func() {
		app.mu.Lock()
		w := app.watcher
		app.watcher = nil
		app.mu.Unlock()

		if w != nil {
			if err := w.Close(); err != nil {
				app.logger.Warn("closing config watcher", "error", err)
			}
		}
		if err := script.CloseAll(app.scripts); err != nil {
			app.logger.Warn("closing scripts", "error", err)
		}
		app.registry.Clear()
		app.logger.Debug("application stopped")
	})
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Registry returns the signal registry.
func (app *Application) Registry() *signal.Registry {
	return app.registry
}

// IsRunning reports whether Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
