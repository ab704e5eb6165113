package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/voiceline-ai/voiceline/config"
	srv "github.com/voiceline-ai/voiceline/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "voiceline"}

	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.Run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

func migrateCMD() *cobra.Command {
	var cfgPath string
	var dir string
	var direction string
	var steps int
	var mig = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.Migrate(dir, cfg.Databases.Postgres.DSN(), direction, steps)
		},
	}
	mig.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	mig.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	mig.Flags().StringVar(&direction, "direction", "up", "up or down")
	mig.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	return mig
}
