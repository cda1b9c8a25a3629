package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var opts globalOptions
	rootCmd := &cobra.Command{
		Use:   "gdrive-storage-api",
		Short: "Google Drive Storage API",
		Long: `An authenticated REST relay in front of a Google Drive service account.
Clients list, upload, download, rename, delete and search Drive files with a shared API key.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config (defaults to $GDRIVE_STORAGE_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the config")

	rootCmd.AddCommand(serveCmd(&opts))
	rootCmd.AddCommand(checkCmd(&opts))
	rootCmd.AddCommand(historyCmd(&opts))
	rootCmd.AddCommand(notifyTestCmd(&opts))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
