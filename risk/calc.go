package risk

// PnL marks a position move to market on the full-capital model used by the
// broker profiles: the whole account rides each trade at the configured
// leverage.
//
//	pnl = capital × leverage × (exit/entry − 1) × direction
//
// pct is the leveraged return in percent. A non-positive entry yields zeros.
func PnL(capital, leverage, entry, exit float64, direction int) (pnl, pct float64) {
	if entry <= 0 || direction == 0 {
		return 0, 0
	}

	change := (exit - entry) / entry
	pct = change * float64(direction) * leverage * 100
	pnl = capital * leverage * change * float64(direction)
	return pnl, pct
}
