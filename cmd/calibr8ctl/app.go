package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/config"
	"github.com/yourorg/calibr8/internal/console"
	"github.com/yourorg/calibr8/internal/logging"
	"github.com/yourorg/calibr8/internal/registry"
	"github.com/yourorg/calibr8/internal/session"
)

// app is shared by every command of one invocation.
type app struct {
	configPath string
	baseURL    string
	sessionID  string

	cfg       config.Console
	log       *zap.Logger
	client    *catalogclient.Client
	sessions  session.Store
	ownsStore bool
	ctrl      *console.Controller
	unbind    func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "calibr8ctl",
		Short:         "Bind formula variables to tags in the Calibr8 catalog",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "catalog API base URL (overrides config)")
	root.PersistentFlags().StringVar(&a.sessionID, "session", "default", "console session name")

	root.AddCommand(
		newConfigCmd(a),
		newFormulaCmd(a),
		newSelectCmd(a),
		newTagCmd(a),
		newMapCmd(a),
		newUnmapCmd(a),
		newShowCmd(a),
		newAssetsCmd(a),
		newMasterlistCmd(a),
		newExportCmd(a),
		newSessionCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	a.cfg = cfg
	if a.log == nil {
		a.log = logging.New(cfg.LogLevel)
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}
	a.client = catalogclient.New(cfg.BaseURL, timeout, a.log)

	if a.sessions == nil {
		if err := os.MkdirAll(cfg.SessionDir, 0o755); err != nil {
			return fmt.Errorf("failed to create the session directory: %w", err)
		}
		store, err := session.Open(filepath.Clean(cfg.SessionDir))
		if err != nil {
			return fmt.Errorf("failed to open sessions: %w", err)
		}
		a.sessions = store
		a.ownsStore = true
	}
	store, unbind, err := session.Bind(a.sessions, a.sessionID)
	if err != nil {
		return err
	}
	a.unbind = unbind
	a.ctrl = console.NewClientController(a.client, store, a.log)
	return nil
}

// teardown flushes the session and closes what setup opened. It runs even
// when the command failed.
func (a *app) teardown() error {
	var errs []error
	if a.unbind != nil {
		errs = append(errs, a.unbind())
		a.unbind = nil
	}
	if a.ownsStore && a.sessions != nil {
		errs = append(errs, a.sessions.Close())
		a.sessions = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

// check turns a failed Result into an error for cobra to print.
func check[T any](r registry.Result[T]) (T, error) {
	if !r.Success {
		return r.Data, errors.New(r.Error)
	}
	return r.Data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
