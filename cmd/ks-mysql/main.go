// ks-mysql speaks the synchronization protocol for a MySQL database, as
// either peer of the pair, over its own stdin/stdout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Limetric/kitchensync/internal/config"
	"github.com/Limetric/kitchensync/internal/endpoint"
	"github.com/Limetric/kitchensync/internal/mysqladapter"
	"github.com/Limetric/kitchensync/internal/protocol"
)

var flags = struct {
	configPath  string
	host        string
	port        int
	database    string
	username    string
	password    string
	role        string
	peerCommand string
}{}

var rootCmd = &cobra.Command{
	Use:   "ks-mysql",
	Short: "MySQL endpoint for point-to-point table synchronization",
	Args:  cobra.NoArgs,
	RunE:  runEndpoint,

	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to endpoint TOML config file")
	rootCmd.Flags().StringVar(&flags.host, "host", "", "database server host")
	rootCmd.Flags().IntVar(&flags.port, "port", 0, "database server port")
	rootCmd.Flags().StringVar(&flags.database, "database", "", "database name")
	rootCmd.Flags().StringVar(&flags.username, "username", "", "database user")
	rootCmd.Flags().StringVar(&flags.password, "password", "", "database password")
	rootCmd.Flags().StringVar(&flags.role, "role", "", "endpoint role (from|to)")
	rootCmd.Flags().StringVar(&flags.peerCommand, "peer-command", "", "shell command that runs the peer endpoint (role=to)")
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEndpoint(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		log.Printf("warning: stdin is a terminal; this endpoint expects to be driven over a pipe")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mysqladapter.Connect(ctx, mysqladapter.ConnParams{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Database:         cfg.Database,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SessionVariables: cfg.SessionVariables,
	})
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	stream := protocol.New(os.Stdin, os.Stdout)
	switch cfg.Role {
	case config.RoleFrom:
		return endpoint.RunFrom(ctx, stream, client, endpoint.FromOptions{})
	default:
		// MySQL snapshots are not importable by a second connection, so
		// the to-side asks the peer for a plain read transaction.
		return endpoint.RunTo(ctx, stream, client, endpoint.ToOptions{
			IgnoreTables: cfg.IgnoreTables,
			OnlyTables:   cfg.OnlyTables,
			IdleInterval: cfg.IdleInterval(),
		})
	}
}

func resolveConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.host != "" {
		cfg.Host = flags.host
	}
	if flags.port != 0 {
		cfg.Port = flags.port
	}
	if flags.database != "" {
		cfg.Database = flags.database
	}
	if flags.username != "" {
		cfg.Username = flags.username
	}
	if flags.password != "" {
		cfg.Password = flags.password
	}
	if flags.role != "" {
		cfg.Role = config.Role(flags.role)
	}
	if flags.peerCommand != "" {
		cfg.PeerCommand = flags.peerCommand
	}

	switch cfg.Role {
	case config.RoleFrom, config.RoleTo:
	default:
		return nil, fmt.Errorf("role must be one of: from, to")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	return cfg, nil
}
