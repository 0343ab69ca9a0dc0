package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドを省略した場合はserveとして起動する。
// SIGINTまたはSIGTERMを受信するとcontextをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd はルートコマンドを生成する。
func NewRootCmd(w io.Writer) *cobra.Command {
	serve := newServeCmd(w)

	root := &cobra.Command{
		Use:           "blogos",
		Short:         "Blog OS access-control service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(
		serve,
		newWorkerCmd(w),
		newMigrateCmd(w),
		newHealthcheckCmd(),
	)

	return root
}

func newServeCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func newWorkerCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Args:  cobra.NoArgs,
		Short: "Run background jobs (expired access code cleanup)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func newMigrateCmd(w io.Writer) *cobra.Command {
	up := func(cmd *cobra.Command, args []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return runMigrate(cfg)
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Args:  cobra.NoArgs,
		Short: "Apply database migrations",
		RunE:  up,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Args:  cobra.NoArgs,
			Short: "Apply all pending migrations",
			RunE:  up,
		},
		&cobra.Command{
			Use:   "down",
			Args:  cobra.NoArgs,
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := Init(w)
				if err != nil {
					return err
				}
				return runMigrateDown(cfg)
			},
		},
	)
	return cmd
}

// newHealthcheckCmd は軽量サブコマンドのため、設定の読み込みを行わない。
// distroless環境でのDockerヘルスチェック用。
func newHealthcheckCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Args:  cobra.NoArgs,
		Short: "Probe the local /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(port)
		},
	}

	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "port the API server listens on")
	return cmd
}
