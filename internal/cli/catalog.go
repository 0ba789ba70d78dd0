package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tableside/internal/catalog"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import and inspect the menu catalog",
	}
	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogListCmd())
	cmd.AddCommand(newCatalogShowCmd())
	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import options and items from a YAML or JSON catalog",
		Long: "Import reads a catalog file (.yaml, .yml or .json), validates the option\n" +
			"forest and items, then upserts them into the store.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.Load(args[0])
			if err != nil {
				return userError(err)
			}

			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			summary, err := catalog.Import(store, f)
			if err != nil {
				return classify(err)
			}

			out := cmd.OutOrStdout()
			unresolved := f.Unresolved()
			if flags.jsonMode {
				return printJSON(out, map[string]any{
					"options":    summary.Options,
					"items":      summary.Items,
					"unresolved": unresolved,
				})
			}
			fmt.Fprintf(out, "Imported %d options and %d items\n", summary.Options, summary.Items)
			ids := make([]string, 0, len(unresolved))
			for id := range unresolved {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "  warning: %s references unknown options %v\n", id, unresolved[id])
			}
			return nil
		},
	}
}

func newCatalogListCmd() *cobra.Command {
	var category string
	var availableOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List menu items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			filter := map[string]any{}
			if category != "" {
				filter["category"] = category
			}
			if availableOnly {
				filter["available"] = true
			}
			items, err := catalog.Items(store, filter)
			if err != nil {
				return classify(err)
			}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No items. Run 'tableside catalog import <file>' first.")
				return nil
			}
			for _, item := range items {
				var marks []string
				if item.Nested.Enabled {
					marks = append(marks, "options")
				}
				if !item.Available {
					marks = append(marks, "unavailable")
				}
				suffix := ""
				if len(marks) > 0 {
					suffix = " [" + strings.Join(marks, ", ") + "]"
				}
				fmt.Fprintf(out, "%-16s %-24s %10s%s\n", item.ItemID, item.Name, price(item.Price), suffix)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list items in this category")
	cmd.Flags().BoolVar(&availableOnly, "available", false, "only list available items")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item with its add-ons and option tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			item, err := catalog.Item(store, args[0])
			if err != nil {
				return classify(err)
			}
			forest, err := catalog.Forest(store)
			if err != nil {
				return classify(err)
			}
			roots := item.ResolveRootOptions(forest)

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(out, map[string]any{
					"item":         item,
					"root_options": roots,
				})
			}
			fmt.Fprintf(out, "%s (%s) %s\n", item.Name, item.ItemID, price(item.Price))
			if item.Description != "" {
				fmt.Fprintln(out, "  "+item.Description)
			}
			for _, a := range item.AddOns {
				fmt.Fprintf(out, "  add-on %s: %s +%s\n", a.ID, a.Name, price(a.Price))
			}
			for _, g := range item.AddOnGroups {
				fmt.Fprintf(out, "  group  %s: %s +%s\n", g.ID, g.Name, price(g.Price))
			}
			if item.Nested.Enabled {
				min, max := item.Nested.RootBounds()
				fmt.Fprintf(out, "  options (choose %d to %d):\n", min, max)
				printTree(out, roots, 2)
			}
			return nil
		},
	}
}

// printTree renders an option forest with one node per line.
func printTree(w io.Writer, nodes []types.OptionNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		line := fmt.Sprintf("%s%d %s", indent, n.ID, n.Name)
		if n.Price != 0 {
			line += " +" + price(n.Price)
		}
		if n.HasChildren() {
			min, max := n.ChildBounds()
			line += fmt.Sprintf(" (choose %d to %d)", min, max)
		}
		fmt.Fprintln(w, line)
		printTree(w, n.ChildOptions, depth+1)
	}
}
