package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/database"
	"github.com/wonny/limitup/pkg/logger"
)

// SQLStore implements Store over a SQLite or Postgres backend
// ⭐ SSOT: 쓰기는 mu로 직렬화 (single writer)
type SQLStore struct {
	b      backend
	loc    *time.Location
	mu     sync.Mutex
	now    func() time.Time
	logger *logger.Logger
}

// NewSQLite opens the store on a modernc SQLite handle and applies the schema
func NewSQLite(ctx context.Context, db *database.SQLite, loc *time.Location, log *logger.Logger) (*SQLStore, error) {
	return newSQLStore(ctx, &sqliteBackend{db: db}, loc, log)
}

// NewPostgres opens the store on a pgx pool and applies the schema
func NewPostgres(ctx context.Context, db *database.DB, loc *time.Location, log *logger.Logger) (*SQLStore, error) {
	return newSQLStore(ctx, &pgBackend{db: db}, loc, log)
}

func newSQLStore(ctx context.Context, b backend, loc *time.Location, log *logger.Logger) (*SQLStore, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &SQLStore{
		b:      b,
		loc:    loc,
		now:    time.Now,
		logger: log.WithComponent("store").WithField("driver", b.Name()),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Driver returns the backend name
func (s *SQLStore) Driver() string {
	return s.b.Name()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.b.Schema() {
		if _, err := s.b.Exec(ctx, stmt); err != nil {
			return s.fail("migrate", err)
		}
	}
	s.logger.Debug("Schema applied")
	return nil
}

// Close releases the backend
func (s *SQLStore) Close() error {
	return s.b.Close()
}

// Health pings the underlying connection
func (s *SQLStore) Health(ctx context.Context) database.Health {
	return s.b.Health(ctx)
}

func (s *SQLStore) fail(op string, err error) error {
	return &PersistenceError{Op: op, Transient: s.b.Transient(err), Err: err}
}

func (s *SQLStore) write(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return s.fail(op, err)
	}
	return nil
}

func (s *SQLStore) date(t time.Time) any {
	return s.b.Date(t)
}

// ===== 1. Recommendations =====

const recSelect = `SELECT r.id, r.trade_date, r.t1_date, r.symbol, r.name, r.total_score, r.t_day_score,
	r.auction_score, r.open_change_pct, r.status, r.breakdown_json, r.decision_json, r.snapshot_json,
	r.created_at, r.updated_at`

// UpsertRecommendation inserts or replaces a recommendation keyed by its content-derived id.
// A scored row never overwrites one the T+1 run has already moved past scored.
func (s *SQLStore) UpsertRecommendation(ctx context.Context, rec *contracts.Recommendation) error {
	if rec.ID == "" {
		rec.ID = contracts.RecommendationID(rec.TradeDate, rec.Symbol)
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	var decision any
	if rec.Decision != nil {
		raw, err := json.Marshal(rec.Decision)
		if err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
		decision = string(raw)
	}

	query := `
		INSERT INTO recommendations (
			id, trade_date, t1_date, symbol, name, total_score, t_day_score, auction_score,
			open_change_pct, status, breakdown_json, decision_json, snapshot_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			t1_date = excluded.t1_date,
			name = excluded.name,
			total_score = excluded.total_score,
			t_day_score = excluded.t_day_score,
			auction_score = excluded.auction_score,
			open_change_pct = excluded.open_change_pct,
			status = excluded.status,
			breakdown_json = excluded.breakdown_json,
			decision_json = excluded.decision_json,
			snapshot_json = excluded.snapshot_json,
			updated_at = excluded.updated_at
		WHERE recommendations.status = 'scored' OR excluded.status <> 'scored'
	`
	return s.write("upsert recommendation", func() error {
		_, err := s.b.Exec(ctx, query,
			rec.ID, s.date(rec.TradeDate), s.date(rec.T1Date), rec.Symbol, rec.Name,
			rec.TotalScore, rec.TDayScore, rec.AuctionScore, rec.OpenChangePct, string(rec.Status),
			string(breakdown), decision, string(snapshot), s.b.Time(rec.CreatedAt), s.b.Time(rec.UpdatedAt),
		)
		return err
	})
}

// GetRecommendation returns one recommendation or ErrNotFound
func (s *SQLStore) GetRecommendation(ctx context.Context, id string) (*contracts.Recommendation, error) {
	rec, err := s.scanRecommendation(s.b.QueryRow(ctx, recSelect+` FROM recommendations r WHERE r.id = ?`, id))
	if s.b.NoRows(err) {
		return nil, fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get recommendation", err)
	}
	return rec, nil
}

// ListRecommendations returns matching recommendations, newest trade date first, best score first
func (s *SQLStore) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]*contracts.Recommendation, error) {
	var conds []string
	var args []any
	if !f.TradeDate.IsZero() {
		conds = append(conds, "r.trade_date = ?")
		args = append(args, s.date(f.TradeDate))
	}
	if !f.T1Date.IsZero() {
		conds = append(conds, "r.t1_date = ?")
		args = append(args, s.date(f.T1Date))
	}
	conds, args = s.rangeConds("r.trade_date", f.Range, conds, args)
	if f.Symbol != "" {
		conds = append(conds, "r.symbol = ?")
		args = append(args, f.Symbol)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "r.status IN ("+strings.Join(marks, ", ")+")")
	}

	query := recSelect + ` FROM recommendations r` + where(conds) +
		` ORDER BY r.trade_date DESC, r.total_score DESC, r.symbol`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rs, err := s.b.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list recommendations", err)
	}
	defer rs.Close()

	out := make([]*contracts.Recommendation, 0)
	for rs.Next() {
		rec, err := s.scanRecommendation(rs)
		if err != nil {
			return nil, s.fail("list recommendations", err)
		}
		out = append(out, rec)
	}
	if err := rs.Err(); err != nil {
		return nil, s.fail("list recommendations", err)
	}
	return out, nil
}

func (s *SQLStore) scanRecommendation(r row, extra ...any) (*contracts.Recommendation, error) {
	var (
		rec                           contracts.Recommendation
		trade, t1                     dbDate
		created, updated              dbTime
		status                        string
		breakdown, decision, snapshot []byte
	)
	dest := append([]any{
		&rec.ID, &trade, &t1, &rec.Symbol, &rec.Name, &rec.TotalScore, &rec.TDayScore,
		&rec.AuctionScore, &rec.OpenChangePct, &status, &breakdown, &decision, &snapshot,
		&created, &updated,
	}, extra...)
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}

	rec.TradeDate = trade.in(s.loc)
	rec.T1Date = t1.in(s.loc)
	rec.Status = contracts.RecommendationStatus(status)
	rec.CreatedAt = created.t
	rec.UpdatedAt = updated.t
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("recommendation %s breakdown: %w", rec.ID, err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("recommendation %s snapshot: %w", rec.ID, err)
		}
	}
	if len(decision) > 0 {
		rec.Decision = &contracts.Decision{}
		if err := json.Unmarshal(decision, rec.Decision); err != nil {
			return nil, fmt.Errorf("recommendation %s decision: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// ===== 2. Trades =====

// RecordTrade inserts or updates a trade keyed by recID_side_date
func (s *SQLStore) RecordTrade(ctx context.Context, t *contracts.Trade) error {
	if t.ID == "" {
		t.ID = contracts.TradeID(t.RecommendationID, t.Side, t.Date)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	query := `
		INSERT INTO trades (
			id, recommendation_id, side, trade_date, trade_time, price, quantity, amount, status, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			trade_time = excluded.trade_time,
			price = excluded.price,
			quantity = excluded.quantity,
			amount = excluded.amount,
			status = excluded.status,
			notes = excluded.notes
	`
	return s.write("record trade", func() error {
		_, err := s.b.Exec(ctx, query,
			t.ID, t.RecommendationID, string(t.Side), s.date(t.Date), t.Time, t.Price, t.Quantity,
			t.Amount, string(t.Status), t.Notes, s.b.Time(t.CreatedAt),
		)
		return err
	})
}

// ListTradesFor returns the trades of a recommendation by date then side (buy first)
func (s *SQLStore) ListTradesFor(ctx context.Context, recID string) ([]*contracts.Trade, error) {
	query := `
		SELECT id, recommendation_id, side, trade_date, trade_time, price, quantity, amount, status, notes, created_at
		FROM trades
		WHERE recommendation_id = ?
		ORDER BY trade_date, side
	`
	rs, err := s.b.Query(ctx, query, recID)
	if err != nil {
		return nil, s.fail("list trades", err)
	}
	defer rs.Close()

	out := make([]*contracts.Trade, 0, 2)
	for rs.Next() {
		var (
			t            contracts.Trade
			side, status string
			date         dbDate
			created      dbTime
		)
		if err := rs.Scan(&t.ID, &t.RecommendationID, &side, &date, &t.Time, &t.Price, &t.Quantity,
			&t.Amount, &status, &t.Notes, &created); err != nil {
			return nil, s.fail("list trades", err)
		}
		t.Side = contracts.Side(side)
		t.Status = contracts.TradeStatus(status)
		t.Date = date.in(s.loc)
		t.CreatedAt = created.t
		out = append(out, &t)
	}
	if err := rs.Err(); err != nil {
		return nil, s.fail("list trades", err)
	}
	return out, nil
}

// ===== 3. Performance =====

const perfSelect = `SELECT id, recommendation_id, symbol, buy_date, buy_price, sell_date, sell_price,
	holding_days, return_pct, win_loss, max_drawdown_pct, sharpe_like, calculated_at FROM performance`

// RecordPerformance inserts or replaces the performance row of a recommendation.
// A closed record must satisfy win <=> returnPct > 0.
func (s *SQLStore) RecordPerformance(ctx context.Context, p *contracts.PerformanceRecord) error {
	if p.ID == "" {
		p.ID = contracts.PerformanceID(p.RecommendationID)
	}
	if p.IsClosed() && p.WinLoss != contracts.ClassifyReturn(p.ReturnPct) {
		return &PersistenceError{
			Op:  "record performance",
			Err: fmt.Errorf("%s: win_loss %s inconsistent with return %.4f%%", p.ID, p.WinLoss, p.ReturnPct),
		}
	}
	if !p.IsClosed() && p.WinLoss != contracts.Pending {
		return &PersistenceError{
			Op:  "record performance",
			Err: fmt.Errorf("%s: open position must be pending, got %s", p.ID, p.WinLoss),
		}
	}
	if p.CalculatedAt.IsZero() {
		p.CalculatedAt = s.now()
	}

	var sellDate, sellPrice any
	if p.SellDate != nil {
		sellDate = s.date(*p.SellDate)
	}
	if p.SellPrice != nil {
		sellPrice = *p.SellPrice
	}

	query := `
		INSERT INTO performance (
			id, recommendation_id, symbol, buy_date, buy_price, sell_date, sell_price,
			holding_days, return_pct, win_loss, max_drawdown_pct, sharpe_like, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			symbol = excluded.symbol,
			buy_date = excluded.buy_date,
			buy_price = excluded.buy_price,
			sell_date = excluded.sell_date,
			sell_price = excluded.sell_price,
			holding_days = excluded.holding_days,
			return_pct = excluded.return_pct,
			win_loss = excluded.win_loss,
			max_drawdown_pct = excluded.max_drawdown_pct,
			sharpe_like = excluded.sharpe_like,
			calculated_at = excluded.calculated_at
	`
	return s.write("record performance", func() error {
		_, err := s.b.Exec(ctx, query,
			p.ID, p.RecommendationID, p.Symbol, s.date(p.BuyDate), p.BuyPrice, sellDate, sellPrice,
			p.HoldingDays, p.ReturnPct, p.WinLoss.Code(), p.MaxDrawdownPct, p.SharpeLike, s.b.Time(p.CalculatedAt),
		)
		return err
	})
}

// GetPerformance returns the performance row of a recommendation or ErrNotFound
func (s *SQLStore) GetPerformance(ctx context.Context, recID string) (*contracts.PerformanceRecord, error) {
	p, err := s.scanPerformance(s.b.QueryRow(ctx, perfSelect+` WHERE recommendation_id = ?`, recID))
	if s.b.NoRows(err) {
		return nil, fmt.Errorf("performance of %s: %w", recID, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get performance", err)
	}
	return p, nil
}

// ListPerformance returns performance rows whose buy date falls in r
func (s *SQLStore) ListPerformance(ctx context.Context, r contracts.DateRange) ([]*contracts.PerformanceRecord, error) {
	conds, args := s.rangeConds("buy_date", r, nil, nil)
	rs, err := s.b.Query(ctx, perfSelect+where(conds)+` ORDER BY buy_date, recommendation_id`, args...)
	if err != nil {
		return nil, s.fail("list performance", err)
	}
	defer rs.Close()

	out := make([]*contracts.PerformanceRecord, 0)
	for rs.Next() {
		p, err := s.scanPerformance(rs)
		if err != nil {
			return nil, s.fail("list performance", err)
		}
		out = append(out, p)
	}
	if err := rs.Err(); err != nil {
		return nil, s.fail("list performance", err)
	}
	return out, nil
}

// AggregatePerformance summarizes the performance rows of a range
func (s *SQLStore) AggregatePerformance(ctx context.Context, r contracts.DateRange) (*contracts.PerformanceSummary, error) {
	records, err := s.ListPerformance(ctx, r)
	if err != nil {
		return nil, err
	}
	return Summarize(records, r), nil
}

func (s *SQLStore) scanPerformance(r row) (*contracts.PerformanceRecord, error) {
	var (
		p                 contracts.PerformanceRecord
		buyDate, sellDate dbDate
		sellPrice         sql.NullFloat64
		winLoss           int
		calculated        dbTime
	)
	if err := r.Scan(&p.ID, &p.RecommendationID, &p.Symbol, &buyDate, &p.BuyPrice, &sellDate, &sellPrice,
		&p.HoldingDays, &p.ReturnPct, &winLoss, &p.MaxDrawdownPct, &p.SharpeLike, &calculated); err != nil {
		return nil, err
	}
	p.BuyDate = buyDate.in(s.loc)
	if sellDate.valid {
		d := sellDate.in(s.loc)
		p.SellDate = &d
	}
	if sellPrice.Valid {
		v := sellPrice.Float64
		p.SellPrice = &v
	}
	p.WinLoss = contracts.WinLossFromCode(winLoss)
	p.CalculatedAt = calculated.t
	return &p, nil
}

// ===== 4. Factor weights =====

// GetFactorWeights returns every factor row ordered by id
func (s *SQLStore) GetFactorWeights(ctx context.Context) ([]contracts.FactorWeight, error) {
	query := `
		SELECT factor_id, factor_group, factor_type, weight, description, formula, is_active, updated_at
		FROM factors
		ORDER BY factor_id
	`
	rs, err := s.b.Query(ctx, query)
	if err != nil {
		return nil, s.fail("get factor weights", err)
	}
	defer rs.Close()

	out := make([]contracts.FactorWeight, 0)
	for rs.Next() {
		var (
			w       contracts.FactorWeight
			typ     string
			updated dbTime
		)
		if err := rs.Scan(&w.FactorID, &w.Group, &typ, &w.Weight, &w.Description, &w.Formula,
			&w.IsActive, &updated); err != nil {
			return nil, s.fail("get factor weights", err)
		}
		w.Type = contracts.FactorType(typ)
		w.LastUpdated = updated.t
		out = append(out, w)
	}
	if err := rs.Err(); err != nil {
		return nil, s.fail("get factor weights", err)
	}
	return out, nil
}

// UpsertFactorWeight inserts or replaces a factor definition
func (s *SQLStore) UpsertFactorWeight(ctx context.Context, w contracts.FactorWeight) error {
	if w.LastUpdated.IsZero() {
		w.LastUpdated = s.now()
	}
	query := `
		INSERT INTO factors (factor_id, factor_group, factor_type, weight, description, formula, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (factor_id) DO UPDATE SET
			factor_group = excluded.factor_group,
			factor_type = excluded.factor_type,
			weight = excluded.weight,
			description = excluded.description,
			formula = excluded.formula,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	return s.write("upsert factor", func() error {
		_, err := s.b.Exec(ctx, query, w.FactorID, w.Group, string(w.Type), w.Weight, w.Description,
			w.Formula, w.IsActive, s.b.Time(w.LastUpdated))
		return err
	})
}

// UpdateFactorWeight changes only the weight of an existing factor
func (s *SQLStore) UpdateFactorWeight(ctx context.Context, factorID string, weight float64, at time.Time) error {
	var affected int64
	err := s.write("update factor", func() error {
		n, err := s.b.Exec(ctx, `UPDATE factors SET weight = ?, updated_at = ? WHERE factor_id = ?`,
			weight, s.b.Time(at), factorID)
		affected = n
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("factor %s: %w", factorID, ErrNotFound)
	}
	return nil
}

// ===== 5. Learning log =====

const learningSelect = `SELECT id, kind, model_type, training_size, test_size, metrics_json, improvements_json,
	new_factors_json, execution_ms, status, message, created_at FROM learning_logs`

// AppendLearningSession appends an optimizer run; an empty id gets a new uuid
func (s *SQLStore) AppendLearningSession(ctx context.Context, ls *contracts.LearningSession) error {
	if ls.ID == "" {
		ls.ID = uuid.NewString()
	}
	if ls.CreatedAt.IsZero() {
		ls.CreatedAt = s.now()
	}
	metrics, err := json.Marshal(nonNilMap(ls.Metrics))
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	improvements, err := json.Marshal(nonNil(ls.Improvements))
	if err != nil {
		return fmt.Errorf("marshal improvements: %w", err)
	}
	factors, err := json.Marshal(nonNil(ls.NewFactors))
	if err != nil {
		return fmt.Errorf("marshal new factors: %w", err)
	}

	query := `
		INSERT INTO learning_logs (
			id, kind, model_type, training_size, test_size, metrics_json, improvements_json,
			new_factors_json, execution_ms, status, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.write("append learning session", func() error {
		_, err := s.b.Exec(ctx, query, ls.ID, ls.Kind, ls.ModelType, ls.TrainingSize, ls.TestSize,
			string(metrics), string(improvements), string(factors), ls.ExecutionTime.Milliseconds(),
			string(ls.Status), ls.Message, s.b.Time(ls.CreatedAt))
		return err
	})
}

// LastLearningSession returns the newest session of kind with status (empty values match any)
func (s *SQLStore) LastLearningSession(ctx context.Context, kind string, status contracts.SessionStatus) (*contracts.LearningSession, error) {
	var conds []string
	var args []any
	if kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}

	var (
		ls                             contracts.LearningSession
		metrics, improvements, factors []byte
		execMS                         int64
		st                             string
		created                        dbTime
	)
	err := s.b.QueryRow(ctx, learningSelect+where(conds)+` ORDER BY created_at DESC LIMIT 1`, args...).Scan(
		&ls.ID, &ls.Kind, &ls.ModelType, &ls.TrainingSize, &ls.TestSize, &metrics, &improvements,
		&factors, &execMS, &st, &ls.Message, &created,
	)
	if s.b.NoRows(err) {
		return nil, fmt.Errorf("learning session %s/%s: %w", kind, status, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("last learning session", err)
	}

	ls.Status = contracts.SessionStatus(st)
	ls.ExecutionTime = time.Duration(execMS) * time.Millisecond
	ls.CreatedAt = created.t
	for _, part := range []struct {
		raw []byte
		dst any
	}{{metrics, &ls.Metrics}, {improvements, &ls.Improvements}, {factors, &ls.NewFactors}} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, fmt.Errorf("learning session %s: %w", ls.ID, err)
		}
	}
	return &ls, nil
}

// TrainingSamples joins closed performance rows with their recommendations
func (s *SQLStore) TrainingSamples(ctx context.Context, r contracts.DateRange) ([]contracts.TrainingSample, error) {
	conds, args := s.rangeConds("r.trade_date", r, []string{"p.win_loss IN (0, 1)"}, nil)
	query := recSelect + `, p.return_pct, p.win_loss
		FROM performance p JOIN recommendations r ON r.id = p.recommendation_id` +
		where(conds) + ` ORDER BY r.trade_date, r.id`

	rs, err := s.b.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail("training samples", err)
	}
	defer rs.Close()

	out := make([]contracts.TrainingSample, 0)
	for rs.Next() {
		var ret float64
		var label int
		rec, err := s.scanRecommendation(rs, &ret, &label)
		if err != nil {
			return nil, s.fail("training samples", err)
		}
		out = append(out, contracts.TrainingSample{
			RecommendationID: rec.ID,
			TradeDate:        rec.TradeDate,
			Features:         contracts.Features(rec),
			Label:            label,
			ReturnPct:        ret,
		})
	}
	if err := rs.Err(); err != nil {
		return nil, s.fail("training samples", err)
	}
	return out, nil
}

// ===== 6. Retention =====

// Cleanup deletes rows older than the retention policy.
// Performance rows go with their recommendation.
func (s *SQLStore) Cleanup(ctx context.Context, p strategyconfig.RetentionConfig, now time.Time) (*CleanupResult, error) {
	res := &CleanupResult{}
	err := s.write("cleanup", func() error {
		t, err := s.b.Begin(ctx)
		if err != nil {
			return err
		}
		if err := s.cleanup(ctx, t, p, now, res); err != nil {
			_ = t.Rollback(ctx)
			return err
		}
		return t.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"recommendations":   res.Recommendations,
		"performance":       res.Performance,
		"trades":            res.Trades,
		"learning_sessions": res.LearningSessions,
	}).Info("Retention cleanup completed")
	return res, nil
}

func (s *SQLStore) cleanup(ctx context.Context, t tx, p strategyconfig.RetentionConfig, now time.Time, res *CleanupResult) error {
	var err error
	if p.RecommendationsDays > 0 {
		cut := s.date(now.AddDate(0, 0, -p.RecommendationsDays))
		res.Performance, err = t.Exec(ctx, `DELETE FROM performance WHERE recommendation_id IN (
			SELECT id FROM recommendations WHERE trade_date < ?)`, cut)
		if err != nil {
			return err
		}
		res.Recommendations, err = t.Exec(ctx, `DELETE FROM recommendations WHERE trade_date < ?`, cut)
		if err != nil {
			return err
		}
	}
	if p.TradesDays > 0 {
		res.Trades, err = t.Exec(ctx, `DELETE FROM trades WHERE trade_date < ?`,
			s.date(now.AddDate(0, 0, -p.TradesDays)))
		if err != nil {
			return err
		}
	}
	if p.LearningDays > 0 {
		res.LearningSessions, err = t.Exec(ctx, `DELETE FROM learning_logs WHERE created_at < ?`,
			s.b.Time(now.AddDate(0, 0, -p.LearningDays)))
		if err != nil {
			return err
		}
	}
	return nil
}

// ===== helpers =====

func (s *SQLStore) rangeConds(col string, r contracts.DateRange, conds []string, args []any) ([]string, []any) {
	if !r.From.IsZero() {
		conds = append(conds, col+" >= ?")
		args = append(args, s.date(r.From))
	}
	if !r.To.IsZero() {
		conds = append(conds, col+" <= ?")
		args = append(args, s.date(r.To))
	}
	return conds, args
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nonNilMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
