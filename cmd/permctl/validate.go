package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the menu catalog for linkage and url problems",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	issues, err := engine.Permissions.ValidateCatalog(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintln(out, "Catalog OK")
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintf(out, "menu %d\t%s\t%s\n", issue.MenuID, issue.Kind, issue.Detail)
	}
	return fmt.Errorf("catalog has %d issues", len(issues))
}
