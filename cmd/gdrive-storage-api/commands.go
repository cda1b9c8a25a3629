package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	gdrivestorage "github.com/cyberxapi/gdrive-storage-api"
	"github.com/cyberxapi/gdrive-storage-api/internal/config"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	envFiles   []string
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return config.Config{}, err
	}
	return config.Load(o.configPath)
}

func (o *globalOptions) newManager(ctx context.Context) (*gdrivestorage.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return gdrivestorage.NewManager(ctx, cfg)
}

func closeManager(manager *gdrivestorage.Manager) {
	if err := manager.Close(); err != nil {
		log.Printf("Error closing storage API: %v", err)
	}
}

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager, err := opts.newManager(ctx)
			if err != nil {
				return err
			}
			defer closeManager(manager)

			if err := manager.Initialize(); err != nil {
				return err
			}
			return manager.Run(ctx)
		},
	}
}

func checkCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the service account can reach Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			manager, err := opts.newManager(ctx)
			if err != nil {
				return err
			}
			defer closeManager(manager)

			info, err := manager.CredentialInfo()
			if err != nil {
				return err
			}
			if info.HasCredentials {
				cmd.Printf("Service account: %s (project %s)\n", info.ClientEmail, info.ProjectID)
			}

			if err := manager.CheckHistory(); err != nil {
				cmd.Printf("History store: %v\n", err)
			} else {
				cmd.Printf("History store OK\n")
			}

			jobs, err := manager.PlannedJobs()
			if err != nil {
				cmd.Printf("Scheduled jobs: %v\n", err)
			}
			for _, job := range jobs {
				cmd.Printf("Job %s (%s) next run at %s\n", job.Name, job.Spec, job.Next.Format(time.RFC3339))
			}

			account, err := manager.CheckCredentials(ctx)
			if err != nil {
				return fmt.Errorf("drive access check failed: %w", err)
			}
			cmd.Printf("Drive access OK as %s\n", account)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time allowed for the check")
	return cmd
}

func historyCmd(opts *globalOptions) *cobra.Command {
	var limit, offset int
	var prune bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded operations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.newManager(cmd.Context())
			if err != nil {
				return err
			}
			defer closeManager(manager)

			if prune {
				deleted, err := manager.PruneHistory()
				if err != nil {
					return err
				}
				cmd.Printf("Pruned %d entries\n", deleted)
				return nil
			}

			operations, total, err := manager.History(limit, offset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOPERATION\tSTATUS\tFILE\tBYTES\tDURATION\tERROR")
			for _, op := range operations {
				file := op.FileID
				if op.FileName != "" {
					file = op.FileName
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
					op.CreatedAt.Format(time.RFC3339), op.Operation, op.Status, file, op.Bytes, op.DurationMs, op.ErrorMsg)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			cmd.Printf("%d of %d entries\n", len(operations), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete entries older than history.retention instead of listing")
	return cmd
}

func notifyTestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test NAME",
		Short: "Send a test message through a configured notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.newManager(cmd.Context())
			if err != nil {
				return err
			}
			defer closeManager(manager)

			if err := manager.TestNotification(args[0]); err != nil {
				return err
			}
			cmd.Printf("Test notification sent to %s\n", args[0])
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(gdrivestorage.Version)
		},
	}
}
