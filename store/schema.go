package store

const schema = `
CREATE TABLE IF NOT EXISTS trading_accounts (
	id TEXT PRIMARY KEY,
	enrollment_id TEXT NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL,
	leverage REAL NOT NULL,
	active INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	open_price REAL NOT NULL,
	stop_loss REAL,
	take_profit REAL,
	commission REAL NOT NULL,
	swap REAL NOT NULL,
	open_time DATETIME NOT NULL,
	current_price REAL NOT NULL,
	profit REAL NOT NULL,
	pips REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_account ON positions(account_id);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	profit REAL NOT NULL,
	pips REAL NOT NULL,
	commission REAL NOT NULL,
	swap REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_account_close ON trades(account_id, close_time);

CREATE TABLE IF NOT EXISTS challenges (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	account_size REAL NOT NULL,
	profit_target REAL NOT NULL,
	max_daily_loss REAL NOT NULL,
	max_total_loss REAL NOT NULL,
	min_trading_days INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS challenge_enrollments (
	id TEXT PRIMARY KEY,
	challenge_id TEXT NOT NULL,
	status TEXT NOT NULL,
	current_balance REAL NOT NULL,
	high_water_mark REAL NOT NULL,
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	account_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_account_time ON equity(account_id, time);
`
