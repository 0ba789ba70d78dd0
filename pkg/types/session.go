package types

import (
	"fmt"
	"strings"
)

// SelectOutcome describes what SelectOrToggle did to the current level.
type SelectOutcome int

// Select outcomes.
const (
	// SelectOutcomeSelected appended the node to the level.
	SelectOutcomeSelected SelectOutcome = iota
	// SelectOutcomeReplaced swapped out the previous choice of a
	// single-select level, discarding its subtree.
	SelectOutcomeReplaced
	// SelectOutcomeDeselected removed an already selected node and its subtree.
	SelectOutcomeDeselected
	// SelectOutcomeIgnored left the level unchanged because it was full.
	SelectOutcomeIgnored
)

func (o SelectOutcome) String() string {
	switch o {
	case SelectOutcomeSelected:
		return "selected"
	case SelectOutcomeReplaced:
		return "replaced"
	case SelectOutcomeDeselected:
		return "deselected"
	case SelectOutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("SelectOutcome(%d)", int(o))
	}
}

// SelectResult reports the effect of a SelectOrToggle call.
type SelectResult struct {
	Outcome  SelectOutcome
	OptionID int64
	// Navigated is true when the selection moved the session one level
	// down into the node's required children.
	Navigated bool
}

// Breadcrumb is one frame of the navigation stack. Frame 0 is the root
// level and has a nil Node.
type Breadcrumb struct {
	Level int
	Node  *OptionNode
}

// Name returns the node name of the frame, or "" for the root frame.
func (b Breadcrumb) Name() string {
	if b.Node == nil {
		return ""
	}
	return b.Node.Name
}

// IncompleteError reports the first selection that does not meet its
// cardinality bounds. Path is the chain of option names from the root down
// to the offending node; an empty Path means the root level itself.
type IncompleteError struct {
	Path []string
	Min  int
	Max  int
	Got  int
}

func (e *IncompleteError) Error() string {
	where := "root level"
	if len(e.Path) > 0 {
		where = strings.Join(e.Path, " > ")
	}
	return fmt.Sprintf("%s at %s: %d chosen, need %d to %d", ErrIncompleteSelection, where, e.Got, e.Min, e.Max)
}

// Unwrap lets errors.Is match ErrIncompleteSelection.
func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteSelection
}

// Session holds the in-progress nested selection for one menu item. A
// session is created when the customer opens an item, mutated only through
// its methods, and discarded by Confirm or Cancel. It is owned by a single
// caller and is not safe for concurrent use.
type Session struct {
	roots   []OptionNode
	rootMin int
	rootMax int

	selections []SelectedOption
	stack      []Breadcrumb

	// path holds, per level below the root, the index of the parent
	// selection within its level. len(path) is the current level.
	path []int

	closed bool
}

// NewSession opens a selection session for a nested-enabled item. The
// forest resolves root option IDs when the item does not carry its options
// inline.
func NewSession(item *MenuItem, forest []OptionNode) (*Session, error) {
	if item == nil {
		return nil, ErrInvalidData
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, item.ItemID)
	}
	if !item.Nested.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrNestedDisabled, item.ItemID)
	}
	return NewSessionFromOptions(item.ResolveRootOptions(forest), item.Nested), nil
}

// NewSessionFromOptions opens a session over the given root options bounded
// by cfg's root selection limits. The options are copied; later catalog
// changes do not affect a running session.
func NewSessionFromOptions(roots []OptionNode, cfg NestedConfig) *Session {
	s := &Session{
		roots: make([]OptionNode, len(roots)),
	}
	for i := range roots {
		s.roots[i] = roots[i].Clone()
	}
	s.rootMin, s.rootMax = cfg.RootBounds()
	s.reset()
	return s
}

func (s *Session) reset() {
	s.selections = []SelectedOption{}
	s.stack = []Breadcrumb{{Level: 0}}
	s.path = nil
}

// Closed reports whether the session was confirmed or cancelled.
func (s *Session) Closed() bool {
	return s.closed
}

// Level returns the current navigation depth; 0 is the root level.
func (s *Session) Level() int {
	return len(s.path)
}

// RootOptions returns the session's root option forest.
func (s *Session) RootOptions() []OptionNode {
	return s.roots
}

// parent returns the selection whose children are edited at the current
// level, or nil at the root. The pointer is valid until the next mutation.
func (s *Session) parent() *SelectedOption {
	var p *SelectedOption
	level := &s.selections
	for _, idx := range s.path {
		p = &(*level)[idx]
		level = &p.ChildSelections
	}
	return p
}

// level returns the slice of selections edited at the current level.
func (s *Session) level() *[]SelectedOption {
	if p := s.parent(); p != nil {
		return &p.ChildSelections
	}
	return &s.selections
}

// bounds returns the cardinality bounds of the current level and whether
// the minimum is mandatory there.
func (s *Session) bounds() (min, max int, required bool) {
	if p := s.parent(); p != nil {
		min, max = p.Option.ChildBounds()
		return min, max, p.Option.RequireChildSelection
	}
	return s.rootMin, s.rootMax, s.rootMin > 0
}

// CurrentOptions returns the option nodes offered at the current level.
func (s *Session) CurrentOptions() []OptionNode {
	if p := s.parent(); p != nil {
		return p.Option.ChildOptions
	}
	return s.roots
}

// CurrentSelections returns a copy of the selections made at the current level.
func (s *Session) CurrentSelections() []SelectedOption {
	return CloneSelections(*s.level())
}

// Selections returns a copy of the root selections made so far.
func (s *Session) Selections() []SelectedOption {
	return CloneSelections(s.selections)
}

// IsSelected reports whether the option is selected at the current level.
func (s *Session) IsSelected(optionID int64) bool {
	return indexOf(*s.level(), optionID) >= 0
}

// Total returns the price of everything selected so far.
func (s *Session) Total() float64 {
	return TotalPrice(s.selections)
}

// Breadcrumbs returns the navigation stack from the root to the current level.
func (s *Session) Breadcrumbs() []Breadcrumb {
	out := make([]Breadcrumb, len(s.stack))
	copy(out, s.stack)
	return out
}

// BreadcrumbNames returns the names of the nodes drilled through, root first.
func (s *Session) BreadcrumbNames() []string {
	names := make([]string, 0, len(s.stack)-1)
	for _, b := range s.stack[1:] {
		names = append(names, b.Name())
	}
	return names
}

// SelectOrToggle applies a customer tap on node at the current level.
//
// Tapping a selected node deselects it and drops its subtree; no minimum
// is enforced until Confirm. On a level that allows one choice the new node
// replaces the old one. On a multi-choice level the node is appended while
// the level is below its maximum; beyond that the selection is unchanged
// and ErrCapExceeded is returned alongside SelectOutcomeIgnored so callers
// may ignore it. Selecting a node that requires children moves the session
// into those children.
func (s *Session) SelectOrToggle(node OptionNode) (SelectResult, error) {
	res := SelectResult{OptionID: node.ID}
	if s.closed {
		return res, ErrSessionClosed
	}
	opts := s.CurrentOptions()
	var target *OptionNode
	for i := range opts {
		if opts[i].ID == node.ID {
			target = &opts[i]
			break
		}
	}
	if target == nil {
		return res, fmt.Errorf("%w: option %d at level %d", ErrOptionNotAtLevel, node.ID, s.Level())
	}

	level := s.level()
	if i := indexOf(*level, target.ID); i >= 0 {
		*level = append((*level)[:i], (*level)[i+1:]...)
		if len(*level) == 0 && s.Level() > 0 {
			*level = nil
		}
		res.Outcome = SelectOutcomeDeselected
		return res, nil
	}

	_, max, _ := s.bounds()
	var idx int
	switch {
	case max == 1:
		if len(*level) > 0 {
			res.Outcome = SelectOutcomeReplaced
		}
		*level = []SelectedOption{NewSelectedOption(*target)}
		idx = 0
	case len(*level) < max:
		*level = append(*level, NewSelectedOption(*target))
		idx = len(*level) - 1
	default:
		res.Outcome = SelectOutcomeIgnored
		return res, fmt.Errorf("%w: level %d allows %d", ErrCapExceeded, s.Level(), max)
	}

	if target.RequireChildSelection && target.HasChildren() {
		s.push(idx)
		res.Navigated = true
	}
	return res, nil
}

// Select looks up optionID among the current options and applies
// SelectOrToggle to it.
func (s *Session) Select(optionID int64) (SelectResult, error) {
	for _, n := range s.CurrentOptions() {
		if n.ID == optionID {
			return s.SelectOrToggle(n)
		}
	}
	if s.closed {
		return SelectResult{OptionID: optionID}, ErrSessionClosed
	}
	return SelectResult{OptionID: optionID}, fmt.Errorf("%w: option %d at level %d", ErrOptionNotAtLevel, optionID, s.Level())
}

// NavigateForward enters the children of a node selected at the current
// level. Optional children can be entered even though the node alone is
// already complete.
func (s *Session) NavigateForward(optionID int64) error {
	if s.closed {
		return ErrSessionClosed
	}
	level := *s.level()
	i := indexOf(level, optionID)
	if i < 0 {
		return fmt.Errorf("%w: option %d", ErrNotSelected, optionID)
	}
	if !level[i].Option.HasChildren() {
		return fmt.Errorf("%w: option %d", ErrNoChildOptions, optionID)
	}
	s.push(i)
	return nil
}

func (s *Session) push(idx int) {
	s.path = append(s.path, idx)
	node := s.parent().Option
	s.stack = append(s.stack, Breadcrumb{Level: len(s.path), Node: &node})
}

// NavigateBack returns to the previous level. It reports false at the root.
func (s *Session) NavigateBack() bool {
	if s.closed || len(s.path) == 0 {
		return false
	}
	s.path = s.path[:len(s.path)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return true
}

// NavigateToRoot backs out of every child level.
func (s *Session) NavigateToRoot() {
	for s.NavigateBack() {
	}
}

// IsLevelValid reports whether the current level's selection count is within
// its bounds. At the root it also requires every selected subtree to be
// complete.
func (s *Session) IsLevelValid() bool {
	level := *s.level()
	min, max, required := s.bounds()
	if len(level) > max {
		return false
	}
	if required && len(level) < min {
		return false
	}
	if s.Level() > 0 {
		return true
	}
	for _, sel := range level {
		if !sel.IsComplete() {
			return false
		}
	}
	return true
}

// Validate checks recursive completeness of the whole selection and returns
// an *IncompleteError naming the first unmet constraint.
func (s *Session) Validate() error {
	got := len(s.selections)
	if (s.rootMin > 0 && got < s.rootMin) || got > s.rootMax {
		return &IncompleteError{Min: s.rootMin, Max: s.rootMax, Got: got}
	}
	for _, sel := range s.selections {
		if err := sel.incomplete(nil); err != nil {
			return err
		}
	}
	return nil
}

// Confirm finalizes the session. On success it returns a deep copy of the
// root selections and closes the session. A failed check leaves the session
// open and unchanged so the customer can fix it.
func (s *Session) Confirm() ([]SelectedOption, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := CloneSelections(s.selections)
	s.close()
	return out, nil
}

// Cancel discards the session without validation.
func (s *Session) Cancel() {
	s.close()
}

func (s *Session) close() {
	s.closed = true
	s.reset()
}

func indexOf(level []SelectedOption, optionID int64) int {
	for i := range level {
		if level[i].OptionID == optionID {
			return i
		}
	}
	return -1
}
