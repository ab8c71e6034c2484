package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"watchparty-quiz/internal/config"
)

// options are the flags shared by every subcommand. Each one can also be
// set through a WATCHPARTY_* environment variable, including from .env.
type options struct {
	configPath string
	envFile    string
	port       string
	storage    string
	notify     string
	logLevel   string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := newEnv()

	cmd := &cobra.Command{
		Use:   "watchparty",
		Short: "Watch-party quiz service: rooms, live quizzes and leaderboards",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			applyEnv(cmd.Flags(), v)
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			applyEnv(cmd.Flags(), v)
			return nil
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	flags.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: WATCHPARTY_CONFIG)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading env (env: WATCHPARTY_ENV_FILE)")
	flags.StringVarP(&opts.port, "port", "p", "", "port to listen on, overrides server.port (env: WATCHPARTY_PORT)")
	flags.StringVar(&opts.storage, "storage", "", "memory|sqlite|postgres, overrides storage.driver (env: WATCHPARTY_STORAGE)")
	flags.StringVar(&opts.notify, "notify", "", "memory|redis|postgres|rabbitmq, overrides notify.driver (env: WATCHPARTY_NOTIFY)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error, overrides log.level (env: WATCHPARTY_LOG_LEVEL)")

	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewResultsCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// newEnv reads WATCHPARTY_* variables, with dashes in flag names mapped to underscores.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("WATCHPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadEnvFile populates the process env from a dotenv file. Variables that
// are already set win; a missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv copies WATCHPARTY_* values onto flags the user did not set.
func applyEnv(flags *pflag.FlagSet, v *viper.Viper) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// loadConfig reads the YAML file, applies flag overrides and validates.
func (o *options) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	if o.storage != "" {
		cfg.Storage.Driver = o.storage
	}
	if o.notify != "" {
		cfg.Notify.Driver = o.notify
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
