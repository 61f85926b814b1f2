package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/internal/config"
	"github.com/xm4dn355x/webpilot/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "webpilot",
	Short:   "Webpilot drives real website workflows through a resilient tool catalog.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd.Root()); err != nil {
			return err
		}

		loaded, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// A fallback logger so the failure itself is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webpilot"})
			return err
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting webpilot", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a signal-aware context. It is the
// only entry point main calls.
func Execute(ctx context.Context) {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("pure-go", false, "drive sites over plain HTTP instead of Chrome")
	rootCmd.PersistentFlags().Int("max-steps", 0, "override the planner step budget")
	rootCmd.PersistentFlags().Bool("headless", true, "run the browser headless")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// reloadConfig re-unmarshals the configuration after subcommands have
// bound their flags, so flag overrides take effect with the right
// precedence.
func reloadConfig() error {
	loaded, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// initializeConfig layers defaults, the optional config file and
// WEBPILOT_* environment variables into the global viper instance. The
// root command is passed in rather than referenced directly so the
// package initializers stay cycle-free.
func initializeConfig(root *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEBPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return bindChangedFlags(root, map[string]string{
		"pure-go":   "browser.pure_go",
		"headless":  "browser.headless",
		"max-steps": "engine.max_steps",
	})
}

// bindChangedFlags binds only flags the user actually set, so flag
// defaults never shadow config file or environment values.
func bindChangedFlags(cmd *cobra.Command, mapping map[string]string) error {
	flags := cmd.Flags()
	if !cmd.HasParent() {
		flags = cmd.PersistentFlags()
	}
	for flag, key := range mapping {
		f := flags.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
