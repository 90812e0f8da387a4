package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"campusrun/internal/config"
	"campusrun/internal/database"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "errandctl",
	Short:         "Operator tooling for the campus errand service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags(rootCmd)
	registerCommands(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CAMPUSRUN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("config", "CONFIG_PATH", "CAMPUSRUN_CONFIG")
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringP("config", "c", "configs/config.yaml", "path to the service config file")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().Bool("verbose", false, "log store activity to stderr")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(migrateCmd())
	root.AddCommand(missionsCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(syncCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"))
}

func cliLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	if viper.GetBool("verbose") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return &logger
}

// withDB opens the mission store named by the config. Opening applies any
// pending migrations.
func withDB(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, db *database.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewDB(cfg.Database.Path, cliLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, cfg, db)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
