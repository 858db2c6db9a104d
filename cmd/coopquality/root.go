package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"coopquality/internal/blob"
	"coopquality/internal/config"
	"coopquality/internal/core"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configFile string
	envFile    string
	jsonOutput bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "coopquality",
		Short:         "Quality evaluation engine for agricultural cooperatives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{File: a.configFile, EnvFile: a.envFile})
			if err != nil {
				return a.fail(err)
			}
			a.cfg = cfg
			a.logger = newLogger(a.stderr, cfg.Log)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default ./coopquality.yaml when present)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file (default .env)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print JSON instead of styled text")

	root.AddCommand(
		newServeCmd(a),
		newSweepCmd(a),
		newEvaluateCmd(a),
		newSeedCmd(a),
		newInventoryCmd(a),
	)
	return root
}

func (a *app) fail(err error) error {
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return err
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openService wires the configured store, evidence backend and thresholds
// into a service. The returned close func releases the store.
func (a *app) openService(ctx context.Context, extra ...core.ServiceOption) (*core.Service, func() error, error) {
	qcfg, err := a.cfg.QualityEngineConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := core.OpenPersistentStore(a.cfg.PersistenceConfig(), nil)
	if err != nil {
		return nil, nil, err
	}
	evidence, err := blob.Open(ctx, a.cfg.EvidenceConfig())
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("open evidence store: %w", err)
	}
	opts := []core.ServiceOption{
		core.WithQualityConfig(qcfg),
		core.WithAlertConfig(a.cfg.AlertConfig()),
		core.WithLogger(a.logger),
		core.WithEvidenceStore(evidence),
	}
	svc, err := core.NewService(store, append(opts, extra...)...)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}
