package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Page backends register themselves with the platform registry.
	_ "github.com/mj1618/findclose/internal/browser"
	_ "github.com/mj1618/findclose/internal/snapshot"
)

var (
	cfgFile string
	vcfg    = viper.New()
	appCfg  = config.Default()
	logger  = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "findclose",
	Short: "Find and highlight the close buttons of page overlays",
	Long: `findclose locates the dismiss controls of ads, modals and popups on a web page
and highlights them while the pointer is shaken. Pages are read either by a
static HTML/CSS snapshot or by a live Chrome tab.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $HOME/.config/findclose/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console, json")

	_ = vcfg.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = vcfg.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		// Use the root persistent flag directly to avoid conflicts with
		// subcommand local flags (e.g. screenshot --format png/jpg).
		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")
		return nil
	}
}

// initConfig reads the config file and environment into appCfg and installs
// the logger.
func initConfig() error {
	config.SetDefaults(vcfg)
	if cfgFile != "" {
		vcfg.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			vcfg.AddConfigPath(filepath.Join(home, ".config", "findclose"))
		}
		vcfg.AddConfigPath(".")
		vcfg.SetConfigName("config")
		vcfg.SetConfigType("yaml")
	}
	vcfg.SetEnvPrefix(config.EnvPrefix)
	vcfg.SetEnvKeyReplacer(config.EnvKeyReplacer())
	vcfg.AutomaticEnv()

	if err := vcfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	appCfg = config.Load(vcfg)

	l, err := newLogger(appCfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logger = l
	slog.SetDefault(l)
	return nil
}

func newLogger(c config.Logging) (*slog.Logger, error) {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", c.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "", "console", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", c.Format)
	}
}
