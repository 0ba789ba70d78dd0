package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tableside/internal/catalog"
	"github.com/mesh-intelligence/tableside/internal/metrics"
	"github.com/mesh-intelligence/tableside/internal/sqlite"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = store.Detach() })

	f, err := catalog.Load("../catalog/testdata/steakhouse.yaml")
	require.NoError(t, err)
	_, err = catalog.Import(store, f)
	require.NoError(t, err)

	return New(store, Options{
		Metrics: metrics.New(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type selectResponse struct {
	Outcome   string      `json:"outcome"`
	Navigated bool        `json:"navigated"`
	Notice    string      `json:"notice"`
	Session   sessionView `json:"session"`
}

type lineResponse struct {
	Line    types.CartLine `json:"line"`
	Merged  bool           `json:"merged"`
	Summary string         `json:"summary"`
}

func openSteak(t *testing.T, s *Server) sessionView {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/sessions", gin.H{"item_id": "steak-plate"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[sessionView](t, w)
}

func tap(t *testing.T, s *Server, sessionID string, optionID int64) selectResponse {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/sessions/"+sessionID+"/select", gin.H{"option_id": optionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[selectResponse](t, w)
}

func TestListItems(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/items?available=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]types.MenuItem](t, w)
	assert.Len(t, items, 3)

	w = do(t, s, http.MethodGet, "/api/items?available=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/items/steak-plate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Item        types.MenuItem     `json:"item"`
		RootOptions []types.OptionNode `json:"root_options"`
	}](t, w)
	assert.Equal(t, "Steak Plate", body.Item.Name)
	assert.Len(t, body.RootOptions, 3)

	w = do(t, s, http.MethodGet, "/api/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionFlow_ConfirmAddsLine(t *testing.T) {
	s := newTestServer(t)
	view := openSteak(t, s)
	assert.Equal(t, 0, view.Level)
	assert.Len(t, view.Options, 3)
	assert.Equal(t, 20.0, view.Total)

	res := tap(t, s, view.ID, 1)
	assert.Equal(t, "selected", res.Outcome)
	assert.True(t, res.Navigated)
	assert.Equal(t, []string{"Beef"}, res.Session.Breadcrumbs)

	// Confirming now names the unfinished choice and keeps the session open.
	w := do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	incomplete := decode[map[string]any](t, w)
	assert.Equal(t, []any{"Beef"}, incomplete["path"])
	assert.Equal(t, 1.0, incomplete["min"])
	assert.Equal(t, 0.0, incomplete["got"])

	res = tap(t, s, view.ID, 11)
	assert.True(t, res.Navigated)
	assert.Equal(t, 2, res.Session.Level)
	res = tap(t, s, view.ID, 111)
	assert.False(t, res.Navigated)
	assert.Equal(t, 170.0, res.Session.Total)
	assert.Equal(t, "Beef > 300g > Medium", res.Session.Summary)

	w = do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", gin.H{
		"add_on_ids":    []string{"fries"},
		"dining_option": types.DiningTakeaway,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	line := decode[lineResponse](t, w)
	assert.False(t, line.Merged)
	assert.Equal(t, 185.0, line.Line.UnitPrice)
	assert.Equal(t, 1, line.Line.Quantity)
	assert.Equal(t, "Beef > 300g > Medium", line.Summary)

	// A confirmed session is gone.
	w = do(t, s, http.MethodGet, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[struct {
		Lines []types.CartLine `json:"lines"`
		Count int              `json:"count"`
		Total float64          `json:"total"`
	}](t, w)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 185.0, cart.Total)
	require.Len(t, cart.Lines[0].NestedSelections, 1)
	assert.Equal(t, int64(111), cart.Lines[0].NestedSelections[0].ChildSelections[0].ChildSelections[0].OptionID)
}

func TestSessionFlow_SameConfigurationMerges(t *testing.T) {
	s := newTestServer(t)

	configure := func(order []int64) lineResponse {
		view := openSteak(t, s)
		for _, id := range order {
			tap(t, s, view.ID, id)
		}
		w := do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[lineResponse](t, w)
	}

	first := configure([]int64{1, 11, 111})
	second := configure([]int64{1, 12, 121})
	third := configure([]int64{1, 11, 111})

	assert.NotEqual(t, first.Line.LineID, second.Line.LineID)
	assert.Equal(t, first.Line.LineID, third.Line.LineID)
	assert.True(t, third.Merged)
	assert.Equal(t, 2, third.Line.Quantity)
}

func TestSessionNavigation(t *testing.T) {
	s := newTestServer(t)
	view := openSteak(t, s)

	tap(t, s, view.ID, 3) // Salad has optional children; no auto navigation.
	w := do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/forward", gin.H{"option_id": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inSalad := decode[sessionView](t, w)
	assert.Equal(t, 1, inSalad.Level)
	assert.Len(t, inSalad.Options, 3)

	tap(t, s, view.ID, 31)
	tap(t, s, view.ID, 32)
	capped := tap(t, s, view.ID, 33)
	assert.Equal(t, "ignored", capped.Outcome)
	assert.NotEmpty(t, capped.Notice)
	assert.False(t, capped.Session.Options[2].Selected)

	w = do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[sessionView](t, w).Level)

	w = do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/forward", gin.H{"option_id": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code, "pork is not selected")

	w = do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/select", gin.H{"option_id": 111})
	assert.Equal(t, http.StatusBadRequest, w.Code, "option not at this level")

	w = do(t, s, http.MethodDelete, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 0, s.sessions.count())

	w = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tableside_selection_cap_rejections_total 1")
	assert.Contains(t, w.Body.String(), `tableside_sessions_closed_total{reason="cancelled"} 1`)
}

func TestCart_PlainItems(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "lemonade", "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lemonade := decode[lineResponse](t, w)
	assert.Equal(t, 3.5, lemonade.Line.UnitPrice)
	assert.Empty(t, lemonade.Line.NestedSelections)

	w = do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "steak-plate"})
	assert.Equal(t, http.StatusConflict, w.Code, "nested items need a session")
	w = do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "seasonal-pie"})
	assert.Equal(t, http.StatusConflict, w.Code, "unavailable")
	w = do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "lemonade", "dining_option": "drive_thru"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "lemonade", "add_on_ids": []string{"fries"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "add-on not offered by the item")

	w = do(t, s, http.MethodPost, "/api/sessions", gin.H{"item_id": "lemonade"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodDelete, "/api/cart/"+lemonade.Line.LineID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/cart/"+lemonade.Line.LineID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, s, http.MethodPost, "/api/cart", gin.H{"item_id": "lemonade"})
	w = do(t, s, http.MethodDelete, "/api/cart", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, 0.0, decode[map[string]any](t, w)["count"])
}

func TestConfirm_BadAddOnKeepsSessionOpen(t *testing.T) {
	s := newTestServer(t)
	view := openSteak(t, s)
	tap(t, s, view.ID, 2)
	tap(t, s, view.ID, 21)

	w := do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", gin.H{"add_on_ids": []string{"truffle"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pork > 200g", decode[sessionView](t, w).Summary)
}

var errDiskFull = errors.New("disk full")

// flakyStore fails cart line writes while broken is set.
type flakyStore struct {
	types.Store
	broken bool
}

func (f *flakyStore) GetTable(name string) (types.Table, error) {
	t, err := f.Store.GetTable(name)
	if err != nil || name != types.TableCartLines {
		return t, err
	}
	return flakyTable{Table: t, store: f}, nil
}

type flakyTable struct {
	types.Table
	store *flakyStore
}

func (t flakyTable) Set(id string, data any) (string, error) {
	if t.store.broken {
		return "", errDiskFull
	}
	return t.Table.Set(id, data)
}

func TestConfirm_FailedCartWriteKeepsSessionOpen(t *testing.T) {
	base := newTestServer(t)
	store := &flakyStore{Store: base.store, broken: true}
	s := New(store, Options{
		Metrics: metrics.New(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	view := openSteak(t, s)
	tap(t, s, view.ID, 2)
	tap(t, s, view.ID, 21)

	w := do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")

	w = do(t, s, http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pork > 200g", decode[sessionView](t, w).Summary)

	w = do(t, s, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, 0.0, decode[map[string]any](t, w)["count"])

	store.broken = false
	w = do(t, s, http.MethodPost, "/api/sessions/"+view.ID+"/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	line := decode[lineResponse](t, w)
	assert.Equal(t, "Pork > 200g", line.Summary)
	// 20 + Pork 30 + 200g 60
	assert.Equal(t, 110.0, line.Line.UnitPrice)

	w = do(t, s, http.MethodGet, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionRegistry_Sweep(t *testing.T) {
	r := newSessionRegistry(time.Minute, metrics.New())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	item := &types.MenuItem{ItemID: "x", Name: "X", Available: true}
	stale, err := r.open(item, types.NewSessionFromOptions(nil, types.NestedConfig{}))
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	fresh, err := r.open(item, types.NewSessionFromOptions(nil, types.NestedConfig{}))
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, r.sweep())
	assert.Equal(t, 1, r.count())
	assert.True(t, stale.session.Closed())
	assert.NoError(t, r.with(fresh.id, func(*openSession) error { return nil }))

	assert.Equal(t, 0, newSessionRegistry(0, metrics.New()).sweep())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = store.Detach() })

	s := New(store, Options{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		AllowOrigins: []string{"http://kiosk.local"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://kiosk.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Origin", "http://elsewhere.example")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
