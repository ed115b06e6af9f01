package main

import (
	"os"

	"github.com/dirigovotes/dirigo/cmd/dirigo/cmd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dirigo",
		Short:         "Dirigo Votes server and account tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("api", envOr("DIRIGO_API_URL", "http://localhost:8090"), "base URL of a running Dirigo API")
	rootCmd.PersistentFlags().String("token", os.Getenv("DIRIGO_TOKEN"), "bearer token for admin commands")

	rootCmd.AddCommand(cmd.ServeCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.SignupCmd())
	rootCmd.AddCommand(cmd.ResendCmd())
	rootCmd.AddCommand(cmd.AccountStatusCmd())
	rootCmd.AddCommand(cmd.UsersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
