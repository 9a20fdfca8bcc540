package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var migrateCheck bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Fold legacy own-record flags into can_manage_own",
	Long: `Runs the idempotent can_manage_own migration.

With --check nothing is written: the command prints how many grants still need
migration and fails when any remain. Use it before dropping the legacy
can_create_data and can_edit_own columns.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateCheck, "check", false, "Report pending grants without migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	engine, closeCache, err := s.engine(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	out := cmd.OutOrStdout()

	if migrateCheck {
		pending, err := engine.Migrations.Pending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pending: %d\n", pending)

		last, err := engine.Migrations.LastRun(ctx)
		if err != nil {
			return err
		}
		if last != nil {
			fmt.Fprintf(out, "Last run: %s (%s, updated %d)\n", last.ID, last.Status, last.Updated)
		}
		if pending > 0 {
			return fmt.Errorf("%d grants still need migration", pending)
		}
		return nil
	}

	result, err := engine.Migrations.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:       %s\n", result.RunID)
	fmt.Fprintf(out, "Inspected: %d\n", result.Inspected)
	fmt.Fprintf(out, "Updated:   %d\n", result.Updated)
	fmt.Fprintf(out, "Skipped:   %d\n", result.Skipped)
	if len(result.LegacyColumns) == 0 {
		fmt.Fprintln(out, "Legacy columns: none")
	} else {
		fmt.Fprintf(out, "Legacy columns: %s\n", strings.Join(result.LegacyColumns, ", "))
	}
	for _, c := range result.Conflicts {
		fmt.Fprintf(out, "Warning: role %d menu %d grants can_manage_own without legacy flags\n", c.RoleID, c.MenuID)
	}
	return nil
}
