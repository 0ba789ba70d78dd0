package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/tableside/internal/catalog"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

var errNeedsSession = errors.New("item has nested options; open a session")

// optionView is one tappable option at the session's current level.
type optionView struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	Image            string  `json:"image,omitempty"`
	Price            float64 `json:"price"`
	Selected         bool    `json:"selected"`
	HasChildren      bool    `json:"has_children"`
	RequiresChildren bool    `json:"requires_children"`
}

// sessionView is what a kiosk renders after every request.
type sessionView struct {
	ID          string                 `json:"id"`
	ItemID      string                 `json:"item_id"`
	ItemName    string                 `json:"item_name"`
	Level       int                    `json:"level"`
	Breadcrumbs []string               `json:"breadcrumbs"`
	Options     []optionView           `json:"options"`
	Selections  []types.SelectedOption `json:"selections"`
	Summary     string                 `json:"summary"`
	Total       float64                `json:"total"`
	LevelValid  bool                   `json:"level_valid"`
}

func newSessionView(sess *openSession) sessionView {
	s := sess.session
	opts := s.CurrentOptions()
	views := make([]optionView, len(opts))
	for i, o := range opts {
		views[i] = optionView{
			ID:               o.ID,
			Name:             o.Name,
			Description:      o.Description,
			Image:            o.Image,
			Price:            o.Price,
			Selected:         s.IsSelected(o.ID),
			HasChildren:      o.HasChildren(),
			RequiresChildren: o.RequireChildSelection && o.HasChildren(),
		}
	}
	selections := s.Selections()
	return sessionView{
		ID:          sess.id,
		ItemID:      sess.item.ItemID,
		ItemName:    sess.item.Name,
		Level:       s.Level(),
		Breadcrumbs: s.BreadcrumbNames(),
		Options:     views,
		Selections:  selections,
		Summary:     types.DescribeSelections(selections),
		Total:       sess.item.Price + s.Total(),
		LevelValid:  s.IsLevelValid(),
	}
}

// lineRequest carries the cart-line fields a kiosk supplies alongside a
// configuration.
type lineRequest struct {
	ItemID              string   `json:"item_id"`
	Quantity            int      `json:"quantity"`
	AddOnIDs            []string `json:"add_on_ids"`
	AddOnGroupIDs       []string `json:"add_on_group_ids"`
	SpecialInstructions string   `json:"special_instructions"`
	DiningOption        string   `json:"dining_option"`
}

func (r lineRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

type optionRequest struct {
	OptionID int64 `json:"option_id"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var incomplete *types.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, types.ErrItemUnavailable),
		errors.Is(err, types.ErrNestedDisabled),
		errors.Is(err, errNeedsSession):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidFilter),
		errors.Is(err, types.ErrAddOnNotFound),
		errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidDiningOption),
		errors.Is(err, types.ErrOptionNotAtLevel),
		errors.Is(err, types.ErrNotSelected),
		errors.Is(err, types.ErrNoChildOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	body := gin.H{"error": err.Error()}
	var incomplete *types.IncompleteError
	if errors.As(err, &incomplete) {
		body["path"] = incomplete.Path
		body["min"] = incomplete.Min
		body["max"] = incomplete.Max
		body["got"] = incomplete.Got
	}
	c.JSON(status, body)
}

func (s *Server) handleListItems(c *gin.Context) {
	filter := map[string]any{}
	if v := c.Query("category"); v != "" {
		filter["category"] = v
	}
	if v := c.Query("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(c, types.ErrInvalidFilter)
			return
		}
		filter["available"] = b
	}
	items, err := catalog.Items(s.store, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleGetItem(c *gin.Context) {
	item, err := catalog.Item(s.store, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	forest, err := catalog.Forest(s.store)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":         item,
		"root_options": item.ResolveRootOptions(forest),
	})
}

func (s *Server) handleOpenSession(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}
	item, session, err := catalog.OpenSession(s.store, req.ItemID)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, err := s.sessions.open(item, session)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionView(sess))
}

func (s *Server) handleGetSession(c *gin.Context) {
	var view sessionView
	err := s.sessions.with(c.Param("id"), func(sess *openSession) error {
		view = newSessionView(sess)
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSelect(c *gin.Context) {
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option_id is required"})
		return
	}
	var (
		view   sessionView
		res    types.SelectResult
		notice string
	)
	err := s.sessions.with(c.Param("id"), func(sess *openSession) error {
		var err error
		res, err = sess.session.Select(req.OptionID)
		s.metrics.ObserveSelect(res, err)
		if errors.Is(err, types.ErrCapExceeded) {
			// The tap is ignored; the kiosk shows a hint instead of an error.
			notice = err.Error()
			err = nil
		}
		view = newSessionView(sess)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome":   res.Outcome.String(),
		"navigated": res.Navigated,
		"notice":    notice,
		"session":   view,
	})
}

func (s *Server) handleForward(c *gin.Context) {
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option_id is required"})
		return
	}
	s.navigate(c, func(sess *openSession) error {
		return sess.session.NavigateForward(req.OptionID)
	})
}

func (s *Server) handleBack(c *gin.Context) {
	s.navigate(c, func(sess *openSession) error {
		sess.session.NavigateBack()
		return nil
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	s.navigate(c, func(sess *openSession) error {
		sess.session.NavigateToRoot()
		return nil
	})
}

func (s *Server) navigate(c *gin.Context, move func(*openSession) error) {
	var view sessionView
	err := s.sessions.with(c.Param("id"), func(sess *openSession) error {
		if err := move(sess); err != nil {
			return err
		}
		view = newSessionView(sess)
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleConfirm finalizes the session and adds the configured item to the
// cart. The line is built and stored before Confirm closes the session, so a
// bad add-on, an incomplete selection or a failed cart write leaves the
// session open for another attempt.
func (s *Server) handleConfirm(c *gin.Context) {
	var req lineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	var line *types.CartLine
	var merged bool
	err := s.sessions.with(c.Param("id"), func(sess *openSession) error {
		draft, err := types.NewCartLine(sess.item, sess.session.Selections(), req.AddOnIDs, req.AddOnGroupIDs,
			req.SpecialInstructions, req.DiningOption, req.quantity())
		if err != nil {
			return err
		}
		if err := sess.session.Validate(); err != nil {
			s.metrics.ObserveConfirm(err)
			return err
		}
		m, err := s.storeLine(draft)
		if err != nil {
			return err
		}
		_, err = sess.session.Confirm()
		s.metrics.ObserveConfirm(err)
		if err != nil {
			return err
		}
		line, merged = draft, m
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.lineCreated(c, line, merged)
}

func (s *Server) handleCancel(c *gin.Context) {
	if err := s.sessions.cancel(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAddPlain adds an item without nested options straight to the cart.
func (s *Server) handleAddPlain(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}
	item, err := catalog.Item(s.store, req.ItemID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if item.Nested.Enabled {
		s.fail(c, errNeedsSession)
		return
	}
	line, err := types.NewCartLine(item, nil, req.AddOnIDs, req.AddOnGroupIDs,
		req.SpecialInstructions, req.DiningOption, req.quantity())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.addLine(c, line)
}

func (s *Server) addLine(c *gin.Context, line *types.CartLine) {
	merged, err := s.storeLine(line)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.lineCreated(c, line, merged)
}

// storeLine writes line to the cart, merging it into a line with the same
// dedup key. It reports whether a merge happened.
func (s *Server) storeLine(line *types.CartLine) (bool, error) {
	lines, err := s.store.GetTable(types.TableCartLines)
	if err != nil {
		return false, err
	}
	requested := line.Quantity
	if _, err := lines.Set("", line); err != nil {
		return false, err
	}
	merged := line.Quantity != requested
	s.metrics.ObserveCartAdd(line, merged)
	return merged, nil
}

func (s *Server) lineCreated(c *gin.Context, line *types.CartLine, merged bool) {
	c.JSON(http.StatusCreated, gin.H{
		"line":    line,
		"merged":  merged,
		"summary": line.Describe(),
	})
}

func (s *Server) cartLines() ([]*types.CartLine, error) {
	table, err := s.store.GetTable(types.TableCartLines)
	if err != nil {
		return nil, err
	}
	rows, err := table.Fetch(nil)
	if err != nil {
		return nil, err
	}
	lines := make([]*types.CartLine, 0, len(rows))
	for _, row := range rows {
		if l, ok := row.(*types.CartLine); ok {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (s *Server) handleListCart(c *gin.Context) {
	lines, err := s.cartLines()
	if err != nil {
		s.fail(c, err)
		return
	}
	cart := types.Cart{Lines: lines}
	c.JSON(http.StatusOK, gin.H{
		"lines": lines,
		"count": cart.Count(),
		"total": cart.Total(),
	})
}

func (s *Server) handleRemoveLine(c *gin.Context) {
	table, err := s.store.GetTable(types.TableCartLines)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := table.Delete(c.Param("lineId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearCart(c *gin.Context) {
	lines, err := s.cartLines()
	if err != nil {
		s.fail(c, err)
		return
	}
	table, err := s.store.GetTable(types.TableCartLines)
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, l := range lines {
		if err := table.Delete(l.LineID); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}
