// Package cli defines the antygravity command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"antygravity/internal/adapters/storage"
	"antygravity/internal/config"
	"antygravity/internal/policy"
)

// Linker flags set at release time.
var (
	version = "dev"
	commit  = "none"
)

// app holds the resolved configuration shared by every command.
type app struct {
	v          *viper.Viper
	configPath string
	noColor    bool
	cfg        config.Config
	log        *slog.Logger
}

// NewRootCmd builds a fresh command tree with its own configuration state.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:                "antygravity",
		Short:              "Privacy scoring and network inventory backend.",
		Long:               `Antygravity scores the privacy risk of installed apps under versioned policies and keeps a per-user inventory of network devices.`,
		Version:            fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  a.setup,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file (default ./antygravity.yaml if present)")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable coloured output")
	pf.String("database-backend", "", "Storage backend: postgres or sqlite or mysql")
	pf.String("database-url", "", "Database connection string or sqlite file path")
	pf.String("policy-dir", "", "Directory with additional policy YAML files")
	pf.String("policy-default", "", "Default policy version (highest version when empty)")
	pf.String("log-level", "", "Log level: debug or info or warn or error")
	a.bind(root, map[string]string{
		"database.backend": "database-backend",
		"database.url":     "database-url",
		"policy.dir":       "policy-dir",
		"policy.default":   "policy-default",
		"log.level":        "log-level",
	})

	root.AddCommand(
		a.serveCmd(),
		a.migrateCmd(),
		a.checkCmd(),
		a.policiesCmd(),
		a.exportCmd(),
		a.tokenCmd(),
		a.mcpCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// bind maps config keys onto flags of cmd so that a flag only overrides the
// file and environment when it is set.
func (a *app) bind(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		_ = a.v.BindPFlag(key, f)
	}
}

// setup reads the config file and environment, then validates.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.noColor {
		color.NoColor = true
	}
	if err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = cfg.Log.Logger(cmd.ErrOrStderr())
	slog.SetDefault(a.log)
	return nil
}

func (a *app) policyOptions() policy.LoadOptions {
	return policy.LoadOptions{
		Dir:            a.cfg.Policy.Dir,
		KeyringPath:    a.cfg.Policy.Keyring,
		DefaultVersion: a.cfg.Policy.Default,
	}
}

func (a *app) registry() (*policy.Registry, error) {
	reg, err := policy.NewRegistryFromOptions(a.policyOptions())
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return reg, nil
}

// openStore opens the configured backend. The caller closes it.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	if err := a.cfg.Database.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, a.cfg.Database.Backend, a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Database.Backend, err)
	}
	return store, nil
}
