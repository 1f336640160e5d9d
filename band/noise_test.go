package band

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intraday/market"
)

func histBar(day time.Time, minute int, open, close float64) market.Bar {
	return market.Bar{
		Symbol: "QQQ", Day: day, Minute: minute,
		Open: open, High: close, Low: close, Close: close,
		Volume: 1000, Turnover: close * 1000,
	}
}

// twoDaySeries builds one prior day opening at prevOpen and closing at
// prevClose, and a target day opening at open. The prior day's single
// post-open bar sits at minute 580 so sigma(580) is its relative move.
func twoDaySeries(prevOpen, prevClose, open float64) (market.Series, time.Time, time.Time) {
	d1 := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	s := market.Series{
		histBar(d1, 570, prevOpen, prevOpen),
		histBar(d1, 580, prevOpen, prevClose),
		histBar(d2, 570, open, open),
		histBar(d2, 580, open, open),
	}
	return s, d1, d2
}

func TestComputeScenarioA(t *testing.T) {
	t.Parallel()

	// open(T)=100, prevClose=98, sigma(580)=|98.98/98-1|=0.01, K1=K2=1
	// => upper=101, lower=97 at minute 580.
	d1 := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	s := market.Series{
		histBar(d1, 570, 98, 98),
		histBar(d1, 580, 98, 98.98),
		histBar(d1, 620, 98, 98), // last bar: previous close 98
		histBar(d2, 570, 100, 100),
		histBar(d2, 580, 100, 101.5),
	}

	d, err := Compute(s, d2, 1, 1, 1)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, d.UpperRef, 1e-9)
	assert.InDelta(t, 98.0, d.LowerRef, 1e-9)
	assert.InDelta(t, 0.01, d.Sigma(580), 1e-9)
	assert.InDelta(t, 101.0, d.Upper(580), 1e-9)
	assert.InDelta(t, 97.02, d.Lower(580), 1e-9)
}

func TestComputeRefsStraddleGap(t *testing.T) {
	t.Parallel()

	// Gap down: prev close above today's open.
	s, _, d2 := twoDaySeries(100, 105, 99)
	d, err := Compute(s, d2, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 105.0, d.UpperRef)
	assert.Equal(t, 99.0, d.LowerRef)
}

func TestBoundsNeverInsideRefs(t *testing.T) {
	t.Parallel()

	s, _, d2 := twoDaySeries(100, 102, 101)
	d, err := Compute(s, d2, 1, 1.5, 0.5)
	require.NoError(t, err)

	for _, m := range []int{570, 580, 600, 700} {
		assert.GreaterOrEqual(t, d.Upper(m), d.UpperRef, "minute %d", m)
		assert.LessOrEqual(t, d.Lower(m), d.LowerRef, "minute %d", m)
	}
}

func TestSigmaEpsilonFallback(t *testing.T) {
	t.Parallel()

	// Prior day closes exactly at its open: sigma is numerically zero and
	// unknown minutes have no history. Both fall back to epsilon.
	s, _, d2 := twoDaySeries(100, 100, 100)
	d, err := Compute(s, d2, 1, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, epsilonSigma, d.Sigma(580))
	assert.Equal(t, epsilonSigma, d.Sigma(999))
	assert.InDelta(t, 100*(1+epsilonSigma), d.Upper(580), 1e-9)
	assert.InDelta(t, 100*(1-epsilonSigma), d.Lower(580), 1e-9)
}

func TestComputeInsufficientHistory(t *testing.T) {
	t.Parallel()

	d2 := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	s := market.Series{histBar(d2, 570, 100, 100)}

	_, err := Compute(s, d2, 1, 1, 1)
	require.Error(t, err)

	var ih *InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, 1, ih.Need)
	assert.Equal(t, 0, ih.Have)

	s2, _, target := twoDaySeries(100, 101, 100)
	_, err = Compute(s2, target, 3, 1, 1)
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, 3, ih.Need)
	assert.Equal(t, 1, ih.Have)
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	s, _, d2 := twoDaySeries(100, 103, 101)
	a, err := Compute(s, d2, 1, 1, 1)
	require.NoError(t, err)
	b, err := Compute(s, d2, 1, 1, 1)
	require.NoError(t, err)

	for _, m := range []int{570, 580, 650} {
		assert.Equal(t, a.Upper(m), b.Upper(m))
		assert.Equal(t, a.Lower(m), b.Lower(m))
		assert.Equal(t, a.Sigma(m), b.Sigma(m))
	}
}

func TestComputeMultiDaySigmaMean(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	s := market.Series{
		histBar(d1, 570, 100, 100),
		histBar(d1, 580, 100, 102), // move 0.02
		histBar(d2, 570, 100, 100),
		histBar(d2, 580, 100, 99), // move 0.01
		histBar(d3, 570, 100, 100),
		histBar(d3, 580, 100, 100),
	}

	d, err := Compute(s, d3, 2, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.015, d.Sigma(580), 1e-9)
}
