package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
	"github.com/imrishuroy/pharmacy-orderflow/internal/users"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalog items",
}

// pharmactl catalog import items.json
var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Write every item of a JSON array into the catalog table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		items, err := decodeItems(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := importItems(cmd.Context(), a.Catalog, items); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", len(items))
		return nil
	},
}

// decodeItems parses a JSON array of items and checks every entry before
// anything is written, so a bad file imports nothing.
func decodeItems(r io.Reader) ([]catalog.Item, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var items []catalog.Item
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("no items")
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.ID) == "":
			return nil, fmt.Errorf("item %d: id is required", i)
		case seen[it.ID]:
			return nil, fmt.Errorf("item %q: duplicate id", it.ID)
		case !it.Kind.Valid():
			return nil, fmt.Errorf("item %q: unknown kind %q", it.ID, it.Kind)
		case it.Price < 0 || it.StockQuantity < 0:
			return nil, fmt.Errorf("item %q: price and stock must not be negative", it.ID)
		case it.Kind == catalog.KindProduct && it.RequiresPrescription:
			return nil, fmt.Errorf("item %q: products cannot require a prescription", it.ID)
		}
		seen[it.ID] = true
	}
	return items, nil
}

// itemWriter is satisfied by *catalog.Store.
type itemWriter interface {
	Put(ctx context.Context, it catalog.Item) error
}

func importItems(ctx context.Context, w itemWriter, items []catalog.Item) error {
	for _, it := range items {
		if err := w.Put(ctx, it); err != nil {
			return fmt.Errorf("item %q: %w", it.ID, err)
		}
	}
	return nil
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userPutFlags struct {
	name  string
	email string
	phone string
	role  string
}

// pharmactl user put <id> --role delivery
var userPutCmd = &cobra.Command{
	Use:   "put <user-id>",
	Short: "Create or replace a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch userPutFlags.role {
		case users.RoleAdmin, users.RoleDelivery, users.RoleCustomer:
		default:
			return fmt.Errorf("unknown role %q", userPutFlags.role)
		}
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		u := users.User{
			UserID:      args[0],
			DisplayName: userPutFlags.name,
			Email:       userPutFlags.email,
			Phone:       userPutFlags.phone,
			Role:        userPutFlags.role,
		}
		if u.DisplayName == "" {
			u.DisplayName = u.UserID
		}
		if err := a.Users.Put(cmd.Context(), u); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), u)
	},
}

// pharmactl token <user-id>
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an API token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Users.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %q not found", args[0])
		}
		token, err := a.Issuer.GenerateToken(u.UserID, u.Role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)

	userPutCmd.Flags().StringVar(&userPutFlags.name, "name", "", "display name")
	userPutCmd.Flags().StringVar(&userPutFlags.email, "email", "", "email address")
	userPutCmd.Flags().StringVar(&userPutFlags.phone, "phone", "", "phone number")
	userPutCmd.Flags().StringVar(&userPutFlags.role, "role", users.RoleCustomer, "admin, delivery or customer")
	userCmd.AddCommand(userPutCmd)
}
