package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tableside/internal/catalog"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// lineFlags are the cart-line options shared by "cart add" and "order".
type lineFlags struct {
	addOns   []string
	groups   []string
	quantity int
	dining   string
	note     string
}

func (f *lineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.addOns, "add-on", nil, "add-on ID (repeatable)")
	cmd.Flags().StringSliceVar(&f.groups, "add-on-group", nil, "add-on group ID (repeatable)")
	cmd.Flags().IntVarP(&f.quantity, "quantity", "q", 1, "quantity")
	cmd.Flags().StringVar(&f.dining, "dining", types.DiningDineIn, "dining option (dine_in or takeaway)")
	cmd.Flags().StringVar(&f.note, "note", "", "special instructions")
}

func (f *lineFlags) build(item *types.MenuItem, selections []types.SelectedOption) (*types.CartLine, error) {
	return types.NewCartLine(item, selections, f.addOns, f.groups, f.note, f.dining, f.quantity)
}

func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
	}
	cmd.AddCommand(newCartListCmd())
	cmd.AddCommand(newCartAddCmd())
	cmd.AddCommand(newCartRemoveCmd())
	cmd.AddCommand(newCartClearCmd())
	return cmd
}

func newCartListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cart lines with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			lines, _, err := cartLines(store)
			if err != nil {
				return classify(err)
			}
			cart := types.Cart{Lines: lines}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(out, map[string]any{
					"lines": lines,
					"count": cart.Count(),
					"total": cart.Total(),
				})
			}
			if len(lines) == 0 {
				fmt.Fprintln(out, "Cart is empty.")
				return nil
			}
			for _, l := range lines {
				printLine(out, l)
			}
			fmt.Fprintf(out, "%d items, total %s\n", cart.Count(), price(cart.Total()))
			return nil
		},
	}
}

func newCartAddCmd() *cobra.Command {
	var lf lineFlags

	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Add an item without nested options to the cart",
		Long: "Add puts an item straight into the cart. Items with nested options must\n" +
			"go through 'tableside order <item-id>' instead.",
		Args: cobra.ExactArgs(1),
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
			if item.Nested.Enabled {
				return userError(fmt.Errorf("%s has nested options; use 'tableside order %s'", item.ItemID, item.ItemID))
			}
			line, err := lf.build(item, nil)
			if err != nil {
				return classify(err)
			}
			return addLine(cmd.OutOrStdout(), store, line)
		},
	}
	lf.register(cmd)
	return cmd
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <line-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			table, err := store.GetTable(types.TableCartLines)
			if err != nil {
				return sysError(err)
			}
			if err := table.Delete(args[0]); err != nil {
				return classify(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed", args[0])
			return nil
		},
	}
}

func newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cart line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			lines, table, err := cartLines(store)
			if err != nil {
				return classify(err)
			}
			for _, l := range lines {
				if err := table.Delete(l.LineID); err != nil && !errors.Is(err, types.ErrNotFound) {
					return sysError(err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d lines\n", len(lines))
			return nil
		},
	}
}

// addLine stores line, merging it into an existing line with the same
// dedup key, and reports the result.
func addLine(out io.Writer, store types.Store, line *types.CartLine) error {
	table, err := store.GetTable(types.TableCartLines)
	if err != nil {
		return sysError(err)
	}
	requested := line.Quantity
	if _, err := table.Set("", line); err != nil {
		return classify(err)
	}
	merged := line.Quantity != requested

	if flags.jsonMode {
		return printJSON(out, map[string]any{"line": line, "merged": merged})
	}
	if merged {
		fmt.Fprintf(out, "Merged into %s, quantity now %d\n", line.LineID, line.Quantity)
	} else {
		fmt.Fprintf(out, "Added %s\n", line.LineID)
	}
	printLine(out, line)
	return nil
}

func printLine(out io.Writer, l *types.CartLine) {
	fmt.Fprintf(out, "%dx %s %s (%s each, %s) [%s]\n",
		l.Quantity, l.Name, price(l.LineTotal()), price(l.UnitPrice), l.DiningOption, l.LineID)
	if d := l.Describe(); d != "" {
		fmt.Fprintln(out, "   "+d)
	}
	var extras []string
	extras = append(extras, l.AddOnIDs...)
	extras = append(extras, l.AddOnGroupIDs...)
	if len(extras) > 0 {
		fmt.Fprintln(out, "   add-ons: "+strings.Join(extras, ", "))
	}
	if l.SpecialInstructions != "" {
		fmt.Fprintln(out, "   note: "+l.SpecialInstructions)
	}
}
