// Command elearnctl is the operator tool for the e-learning backend: schema
// migrations, account bootstrap, demo data, and offline practice exams.
package main

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "elearnctl",
		Short:         "Operator tool for the e-learning backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.String("database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")
	pf.String("lang", "", "Message language (en, id)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (pretty, json)")

	root.AddCommand(
		migrateCmd(),
		createAdminCmd(),
		seedCmd(),
		practiceCmd(),
		historyCmd(),
	)
	return root
}

// viperForCmd binds a command's flags, ELEARN_* variables and an optional
// elearnctl.yaml to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("ELEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("elearnctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/elearn")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Reported once the logger exists.
			v.Set("config-error", err.Error())
		}
	}
	return v
}

// loadConfig layers viper overrides on top of the server's env config.
func loadConfig(v *viper.Viper) (*config.Config, zerolog.Logger) {
	cfg := config.Load()
	cfg.AppName = "elearnctl"
	if s := v.GetString("database-url"); s != "" {
		cfg.DatabaseURL = s
	}
	if s := v.GetString("lang"); s != "" {
		cfg.DefaultLang = s
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("log-format"); s != "" {
		cfg.LogFormat = s
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if msg := v.GetString("config-error"); msg != "" {
		log.Warn().Str("error", msg).Msg("Ignoring unreadable elearnctl.yaml")
	} else if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("path", used).Msg("Loaded config file")
	}
	return cfg, log
}
