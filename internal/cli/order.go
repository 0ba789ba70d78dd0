package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tableside/internal/catalog"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

const orderHelp = `Commands:
  <id> | select <id>    select or deselect an option at this level
  open <id>             enter the children of a selected option
  back                  go up one level
  root                  go back to the top level
  show                  print the current level
  confirm               add the configured item to the cart
  cancel                discard the selection
  help                  print this help
`

func newOrderCmd() *cobra.Command {
	var lf lineFlags

	cmd := &cobra.Command{
		Use:   "order <item-id>",
		Short: "Configure an item with nested options and add it to the cart",
		Long: "Order opens a selection session for an item and reads commands from\n" +
			"stdin, one per line. Type 'help' for the command list. The session ends\n" +
			"with 'confirm' (adds the line to the cart) or 'cancel'.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			item, session, err := catalog.OpenSession(store, args[0])
			if err != nil {
				if errors.Is(err, types.ErrNestedDisabled) {
					return userError(fmt.Errorf("%s has no options; use 'tableside cart add %s'", args[0], args[0]))
				}
				return classify(err)
			}

			sh := &orderShell{
				item:    item,
				session: session,
				lines:   &lf,
				store:   store,
				out:     cmd.OutOrStdout(),
			}
			confirmed, err := sh.run(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(sh.out, "Order cancelled.")
			}
			return nil
		},
	}
	lf.register(cmd)
	return cmd
}

// orderShell drives a selection session from line-oriented input.
type orderShell struct {
	item    *types.MenuItem
	session *types.Session
	lines   *lineFlags
	store   types.Store
	out     io.Writer
}

// run reads commands until confirm, cancel or end of input. It reports
// whether the order reached the cart.
func (sh *orderShell) run(in io.Reader) (bool, error) {
	sh.show()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		verb, arg := strings.ToLower(fields[0]), ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch verb {
		case "select", "s":
			sh.selectOption(arg)
		case "open", "forward", "f":
			sh.open(arg)
		case "back", "b":
			if !sh.session.NavigateBack() {
				fmt.Fprintln(sh.out, "Already at the top level.")
			}
			sh.show()
		case "root":
			sh.session.NavigateToRoot()
			sh.show()
		case "show", "ls":
			sh.show()
		case "help", "?":
			fmt.Fprint(sh.out, orderHelp)
		case "cancel", "quit", "q":
			sh.session.Cancel()
			return false, nil
		case "confirm", "done":
			if sh.confirm() {
				return true, nil
			}
		default:
			if _, err := catalog.ParseOptionID(verb); err == nil {
				sh.selectOption(verb)
				continue
			}
			fmt.Fprintf(sh.out, "Unknown command %q. Type 'help'.\n", verb)
		}
	}
	if err := scanner.Err(); err != nil {
		return false, sysError(fmt.Errorf("read input: %w", err))
	}
	sh.session.Cancel()
	return false, nil
}

func (sh *orderShell) selectOption(arg string) {
	id, err := catalog.ParseOptionID(arg)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	res, err := sh.session.Select(id)
	switch {
	case errors.Is(err, types.ErrCapExceeded):
		fmt.Fprintln(sh.out, "Limit reached; deselect an option first.")
		return
	case err != nil:
		fmt.Fprintln(sh.out, err)
		return
	}
	fmt.Fprintf(sh.out, "%s %d\n", res.Outcome, res.OptionID)
	sh.show()
}

func (sh *orderShell) open(arg string) {
	id, err := catalog.ParseOptionID(arg)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	if err := sh.session.NavigateForward(id); err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	sh.show()
}

// confirm validates the line flags and the whole selection, writes the line
// to the cart, then closes the session. On any failure the session stays
// open and the problem is printed.
func (sh *orderShell) confirm() bool {
	line, err := sh.lines.build(sh.item, sh.session.Selections())
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return false
	}
	if err := sh.session.Validate(); err != nil {
		fmt.Fprintln(sh.out, err)
		return false
	}
	if err := addLine(sh.out, sh.store, line); err != nil {
		fmt.Fprintln(sh.out, err)
		return false
	}
	if _, err := sh.session.Confirm(); err != nil {
		fmt.Fprintln(sh.out, err)
		return false
	}
	return true
}

// show prints the breadcrumb, the options at the current level and the
// running total.
func (sh *orderShell) show() {
	trail := append([]string{sh.item.Name}, sh.session.BreadcrumbNames()...)
	fmt.Fprintln(sh.out, strings.Join(trail, " > "))
	for _, n := range sh.session.CurrentOptions() {
		mark := " "
		if sh.session.IsSelected(n.ID) {
			mark = "x"
		}
		line := fmt.Sprintf("  [%s] %d %s", mark, n.ID, n.Name)
		if n.Price != 0 {
			line += " +" + price(n.Price)
		}
		if n.HasChildren() {
			line += " ..."
		}
		fmt.Fprintln(sh.out, line)
	}
	status := "ok"
	if !sh.session.IsLevelValid() {
		status = "incomplete"
	}
	fmt.Fprintf(sh.out, "Total %s (%s)\n", price(sh.item.Price+sh.session.Total()), status)
}
