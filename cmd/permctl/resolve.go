package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charlesng35/menuguard/internal/permissions"
)

var (
	resolveRole uint
	resolveJSON bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the capability map of a role",
	Args:  cobra.NoArgs,
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().UintVar(&resolveRole, "role", 0, "Role id to resolve")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output as JSON")
	_ = resolveCmd.MarkFlagRequired("role")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveRole == 0 {
		return fmt.Errorf("--role must be a positive id")
	}

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

	m, err := engine.Resolver.ResolvePermissions(ctx, resolveRole)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resolveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	writeCapabilityTable(out, m)
	return nil
}

func writeCapabilityTable(out io.Writer, m *permissions.CapabilityMap) {
	if m.Denied != permissions.DenyNone {
		fmt.Fprintf(out, "Role %d: denied (%s)\n", m.RoleID, m.Denied)
		return
	}
	if m.Len() == 0 {
		fmt.Fprintf(out, "Role %d: no capabilities\n", m.RoleID)
		return
	}

	caps := make([]permissions.Capability, 0, m.Len())
	for _, c := range m.ByMenu {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].MenuCategory != caps[j].MenuCategory {
			return caps[i].MenuCategory < caps[j].MenuCategory
		}
		if caps[i].MenuLevel != caps[j].MenuLevel {
			return caps[i].MenuLevel < caps[j].MenuLevel
		}
		return caps[i].MenuID < caps[j].MenuID
	})

	fmt.Fprintf(out, "Role %d: %d entries\n\n", m.RoleID, len(caps))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MENU\tCATEGORY\tPAGE\tURL\tVIEW\tREAD\tCREATE\tEDIT OTHERS\tDELETE")
	for _, c := range caps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.MenuID, c.MenuCategory, c.MenuPage, c.URL,
			mark(c.CanViewCategory), mark(c.CanReadData), mark(c.CanCreate),
			mark(c.CanEditOthers), mark(c.CanDelete),
		)
	}
	w.Flush()

	if len(m.DuplicateURLs) > 0 {
		fmt.Fprintf(out, "\nWarning: duplicate urls %v; look these up by menu id\n", m.DuplicateURLs)
	}
}

func mark(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
