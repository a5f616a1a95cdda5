package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/studydeck/internal/config"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

var (
	envFile string
	v       = config.New()
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studydeck",
	Short: "studydeck is the local client for the flashcard study service",
	Long: `A local client for the flashcard study service. It signs you in through the
hosted identity provider, keeps the session on disk and forwards study calls
to the backend API with your credentials.

The session lives in <data-dir>/session.db, which only one process can hold
open. While "studydeck server" runs, the other subcommands (whoami, logout,
cards) cannot open it and fail; stop the server or use its web pages.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		if err := config.LoadDotEnv(files...); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Directory for persistent data")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("api-url", "", "Base URL of the backend API")
	bindFlag(config.KeyDataDir, rootCmd, "data-dir")
	bindFlag(config.KeyLogLevel, rootCmd, "log-level")
	bindFlag(config.KeyAPIBaseURL, rootCmd, "api-url")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// bindFlag makes the named flag of cmd override the configuration key when
// it is set on the command line.
func bindFlag(key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}
