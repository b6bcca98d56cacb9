package store

// Table layout shared by both backends; column names match the queries in sql.go

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS recommendations (
		id              TEXT PRIMARY KEY,
		trade_date      TEXT NOT NULL,
		t1_date         TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		name            TEXT NOT NULL,
		total_score     REAL NOT NULL DEFAULT 0,
		t_day_score     REAL NOT NULL DEFAULT 0,
		auction_score   REAL NOT NULL DEFAULT 0,
		open_change_pct REAL NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		breakdown_json  TEXT NOT NULL DEFAULT '{}',
		decision_json   TEXT,
		snapshot_json   TEXT NOT NULL DEFAULT '{}',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_trade_date ON recommendations(trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_t1_date ON recommendations(t1_date)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_symbol ON recommendations(symbol)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id                TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL,
		side              TEXT NOT NULL,
		trade_date        TEXT NOT NULL,
		trade_time        TEXT NOT NULL DEFAULT '',
		price             REAL NOT NULL,
		quantity          INTEGER NOT NULL DEFAULT 0,
		amount            REAL NOT NULL DEFAULT 0,
		status            TEXT NOT NULL,
		notes             TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_rec ON trades(recommendation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date)`,
	`CREATE TABLE IF NOT EXISTS performance (
		id                TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL UNIQUE,
		symbol            TEXT NOT NULL DEFAULT '',
		buy_date          TEXT NOT NULL,
		buy_price         REAL NOT NULL,
		sell_date         TEXT,
		sell_price        REAL,
		holding_days      INTEGER NOT NULL DEFAULT 0,
		return_pct        REAL NOT NULL DEFAULT 0,
		win_loss          INTEGER NOT NULL DEFAULT -1,
		max_drawdown_pct  REAL NOT NULL DEFAULT 0,
		sharpe_like       REAL NOT NULL DEFAULT 0,
		calculated_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_perf_buy_date ON performance(buy_date)`,
	`CREATE TABLE IF NOT EXISTS factors (
		factor_id    TEXT PRIMARY KEY,
		factor_group TEXT NOT NULL DEFAULT '',
		factor_type  TEXT NOT NULL,
		weight       REAL NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		formula      TEXT NOT NULL DEFAULT '',
		is_active    INTEGER NOT NULL DEFAULT 1,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_logs (
		id                TEXT PRIMARY KEY,
		kind              TEXT NOT NULL,
		model_type        TEXT NOT NULL DEFAULT '',
		training_size     INTEGER NOT NULL DEFAULT 0,
		test_size         INTEGER NOT NULL DEFAULT 0,
		metrics_json      TEXT NOT NULL DEFAULT '{}',
		improvements_json TEXT NOT NULL DEFAULT '[]',
		new_factors_json  TEXT NOT NULL DEFAULT '[]',
		execution_ms      INTEGER NOT NULL DEFAULT 0,
		status            TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learning_kind ON learning_logs(kind, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS recommendations (
		id              TEXT PRIMARY KEY,
		trade_date      DATE NOT NULL,
		t1_date         DATE NOT NULL,
		symbol          TEXT NOT NULL,
		name            TEXT NOT NULL,
		total_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
		t_day_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
		auction_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
		open_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		breakdown_json  JSONB NOT NULL DEFAULT '{}',
		decision_json   JSONB,
		snapshot_json   JSONB NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_trade_date ON recommendations(trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_t1_date ON recommendations(t1_date)`,
	`CREATE INDEX IF NOT EXISTS idx_rec_symbol ON recommendations(symbol)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id                TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL,
		side              TEXT NOT NULL,
		trade_date        DATE NOT NULL,
		trade_time        TEXT NOT NULL DEFAULT '',
		price             DOUBLE PRECISION NOT NULL,
		quantity          INTEGER NOT NULL DEFAULT 0,
		amount            DOUBLE PRECISION NOT NULL DEFAULT 0,
		status            TEXT NOT NULL,
		notes             TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_rec ON trades(recommendation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date)`,
	`CREATE TABLE IF NOT EXISTS performance (
		id                TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL UNIQUE,
		symbol            TEXT NOT NULL DEFAULT '',
		buy_date          DATE NOT NULL,
		buy_price         DOUBLE PRECISION NOT NULL,
		sell_date         DATE,
		sell_price        DOUBLE PRECISION,
		holding_days      INTEGER NOT NULL DEFAULT 0,
		return_pct        DOUBLE PRECISION NOT NULL DEFAULT 0,
		win_loss          INTEGER NOT NULL DEFAULT -1,
		max_drawdown_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
		sharpe_like       DOUBLE PRECISION NOT NULL DEFAULT 0,
		calculated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_perf_buy_date ON performance(buy_date)`,
	`CREATE TABLE IF NOT EXISTS factors (
		factor_id    TEXT PRIMARY KEY,
		factor_group TEXT NOT NULL DEFAULT '',
		factor_type  TEXT NOT NULL,
		weight       DOUBLE PRECISION NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		formula      TEXT NOT NULL DEFAULT '',
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_logs (
		id                TEXT PRIMARY KEY,
		kind              TEXT NOT NULL,
		model_type        TEXT NOT NULL DEFAULT '',
		training_size     INTEGER NOT NULL DEFAULT 0,
		test_size         INTEGER NOT NULL DEFAULT 0,
		metrics_json      JSONB NOT NULL DEFAULT '{}',
		improvements_json JSONB NOT NULL DEFAULT '[]',
		new_factors_json  JSONB NOT NULL DEFAULT '[]',
		execution_ms      BIGINT NOT NULL DEFAULT 0,
		status            TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learning_kind ON learning_logs(kind, created_at)`,
}
