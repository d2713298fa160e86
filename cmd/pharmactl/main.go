package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/pharmacy-orderflow/internal/app"
	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
	"github.com/imrishuroy/pharmacy-orderflow/internal/config"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
	"github.com/imrishuroy/pharmacy-orderflow/internal/users"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pharmactl",
	Short:         "Operate the pharmacy order service",
	Long:          "pharmactl seeds the catalog and users, issues tokens and drives orders and recommendations against the configured tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// operator is the identity order commands run as.
var operator = orders.Actor{ID: "pharmactl", Role: users.RoleAdmin}

func init() {
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(alternativesCmd)
	rootCmd.AddCommand(recommendCmd)
}

// boot loads config and builds the services.
func boot(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       "warn",
		Environment: cfg.Env,
		ServiceName: "pharmactl",
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, clients)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
