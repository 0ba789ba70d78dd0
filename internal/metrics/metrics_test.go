package metrics

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

func TestObserveSelect(t *testing.T) {
	c := New()

	c.ObserveSelect(types.SelectResult{Outcome: types.SelectOutcomeSelected}, nil)
	c.ObserveSelect(types.SelectResult{Outcome: types.SelectOutcomeSelected}, nil)
	c.ObserveSelect(types.SelectResult{Outcome: types.SelectOutcomeDeselected}, nil)
	c.ObserveSelect(types.SelectResult{Outcome: types.SelectOutcomeIgnored}, fmt.Errorf("wrapped: %w", types.ErrCapExceeded))
	c.ObserveSelect(types.SelectResult{}, types.ErrOptionNotAtLevel)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.selections.WithLabelValues(types.SelectOutcomeSelected.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.selections.WithLabelValues(types.SelectOutcomeDeselected.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.selections.WithLabelValues(types.SelectOutcomeIgnored.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.capRejections))
}

func TestSessionsAndCart(t *testing.T) {
	c := New()

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed(ReasonConfirmed)
	c.ObserveConfirm(&types.IncompleteError{Min: 1, Max: 1})
	c.ObserveConfirm(nil)
	c.ObserveCartAdd(&types.CartLine{UnitPrice: 85}, false)
	c.ObserveCartAdd(&types.CartLine{UnitPrice: 85}, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsClosed.WithLabelValues(ReasonConfirmed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.confirmRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cartAdds.WithLabelValues("true")))
}

func TestHandler(t *testing.T) {
	c := New()
	c.SessionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "tableside_sessions_open 1")
}

func TestRegistryIsPrivate(t *testing.T) {
	a, b := New(), New()
	a.SessionOpened()

	n, err := testutil.GatherAndCount(a.Registry(), "tableside_sessions_open", "tableside_sessions_opened_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.sessionsOpen))
	assert.NotSame(t, a.Registry(), b.Registry())
}
