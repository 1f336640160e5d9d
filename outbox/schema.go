package outbox

// signalSchema is the contract with the external execution agent. The
// consumed flag belongs exclusively to the consumer; the producer only ever
// inserts.
const signalSchema = `
CREATE TABLE IF NOT EXISTS signals (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	action      TEXT NOT NULL,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	consumed    INTEGER DEFAULT 0
);
`

const tradeSchema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id    TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	entry_time  DATETIME NOT NULL,
	exit_time   DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
`
