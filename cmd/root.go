// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

type contextKey string

// configKey stores the validated configuration in the command context.
const configKey contextKey = "config"

// NewRootCommand builds a fresh command tree. Each call returns independent flag
// state, so tests and repeated executions never share anything.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile  string
		envFiles []string
	)

	rootCmd := &cobra.Command{
		Use:           "formpilot",
		Short:         "formpilot fills job application forms from a profile.",
		Long:          "formpilot scans HTML forms, classifies every field and fills it from a user profile, on saved pages or in a live Chrome tab.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting formpilot.", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newFillCmd())
	rootCmd.AddCommand(newLiveCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with a signal-aware context and logs a failure once.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	logger := observability.GetLogger()
	if errors.Is(err, context.Canceled) {
		logger.Warn("Command aborted.")
	} else {
		logger.Error("Command execution failed.", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file, binds the environment and the flags of the
// executing command. Precedence: flags, environment, file, defaults.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(config.NewKeyReplacer())
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, flag := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
			}
		}
	}
	return nil
}

// flagBindings maps configuration keys onto the flags that override them. A flag only
// overrides its key when the user set it.
var flagBindings = map[string]string{
	"logger.level":               "log-level",
	"logger.format":              "log-format",
	"autofill.scan_delay":        "scan-delay",
	"autofill.field_delay":       "field-delay",
	"autofill.on_busy":           "on-busy",
	"browser.headless":           "headless",
	"browser.form_wait_timeout":  "form-timeout",
	"browser.navigation_timeout": "nav-timeout",
}

// getConfigFromContext returns the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration missing from command context")
	}
	return cfg, nil
}
