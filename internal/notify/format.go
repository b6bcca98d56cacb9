package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/performance"
)

const rule = "========================================"

// Recommendations renders the final T+1 picks under the market condition
func Recommendations(out *auction.Outcome, picks []auction.Evaluation, cond *contracts.MarketCondition) Message {
	var b strings.Builder
	writeCondition(&b, cond)
	b.WriteString(rule + "\n")

	if len(picks) == 0 {
		b.WriteString("⚠️ No picks today\n")
	} else {
		fmt.Fprintf(&b, "🎯 Picks (%d)\n", len(picks))
		for i, ev := range picks {
			writeEvaluation(&b, i+1, ev)
		}
	}

	b.WriteString("\n" + rule + "\n📋 Notes\n")
	stop := -6.0
	if cond != nil && cond.StopLossPct != 0 {
		stop = cond.StopLossPct
	}
	fmt.Fprintf(&b, "1. Set a stop loss (%.0f%%)\n", stop)
	b.WriteString("2. Watch the index trend\n")
	b.WriteString("3. Keep to the position limits\n")

	if out != nil {
		switch out.Mode {
		case auction.ModeLive:
			fmt.Fprintf(&b, "\n⏰ Data: live auction (%s)", out.Window)
		default:
			b.WriteString("\n⏰ Data: historical analysis")
		}
	}

	return Message{
		Kind:    KindRecommendation,
		Title:   fmt.Sprintf("📊 Limit-up picks - %s", dateOf(out)),
		Body:    strings.TrimRight(b.String(), "\n"),
		Payload: picks,
	}
}

// Blocked is the "cannot select" notice for a run that produced no decision
func Blocked(out *auction.Outcome) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Live auction data was not available during the window (%s),\n", out.Window)
	b.WriteString("so there is no recommendation today.\n")
	if out.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", out.Reason)
	}
	if len(out.Dropped) > 0 {
		b.WriteString("Dropped:\n")
		for _, d := range out.Dropped {
			fmt.Fprintf(&b, "  %s: %s\n", d.Symbol, d.Reason)
		}
	}
	return Message{
		Kind:    KindBlocked,
		Title:   fmt.Sprintf("⚠️ Cannot select - %s", dateOf(out)),
		Body:    strings.TrimRight(b.String(), "\n"),
		Payload: out,
	}
}

// TDay renders the T-day shortlist handed to the next session
func TDay(date time.Time, recs []*contracts.Recommendation, cond *contracts.MarketCondition) Message {
	var b strings.Builder
	writeCondition(&b, cond)
	b.WriteString(rule + "\n")

	if len(recs) == 0 {
		b.WriteString("⚠️ No limit-up candidates passed the filters\n")
	} else {
		fmt.Fprintf(&b, "📝 T-day shortlist (%d), auction check on %s\n", len(recs), recs[0].T1Date.Format("2006-01-02"))
		for i, r := range recs {
			fmt.Fprintf(&b, "\n#%d %s (%s)\n", i+1, r.Name, r.Symbol)
			fmt.Fprintf(&b, "  T-day score: %.1f\n", r.TDayScore)
			writeTDayMetrics(&b, r)
		}
	}

	return Message{
		Kind:    KindTDay,
		Title:   fmt.Sprintf("📝 T-day scoring - %s", date.Format("2006-01-02")),
		Body:    strings.TrimRight(b.String(), "\n"),
		Payload: recs,
	}
}

// Performance renders a portfolio report
func Performance(rep *performance.Report) Message {
	var b strings.Builder
	s := rep.Stats

	fmt.Fprintf(&b, "Period: %s ~ %s\n", fmtDate(rep.Range.From), fmtDate(rep.Range.To))
	if rep.Summary != nil {
		fmt.Fprintf(&b, "Positions: %d (closed %d, pending %d)\n",
			rep.Summary.Total, rep.Summary.Wins+rep.Summary.Losses, rep.Summary.Pending)
	}
	if s == nil || s.Trades == 0 {
		b.WriteString("No closed trades yet")
		return Message{Kind: KindPerformance, Title: "📈 Performance report", Body: b.String(), Payload: rep}
	}

	fmt.Fprintf(&b, "Trades: %d | Wins: %d | Losses: %d\n", s.Trades, s.Wins, s.Losses)
	fmt.Fprintf(&b, "Win rate: %.1f%%", s.WinRatePct)
	if s.CI != nil {
		fmt.Fprintf(&b, " (%.0f%% CI %.1f%% ~ %.1f%%)", s.CI.Level*100, s.CI.LowerPct, s.CI.UpperPct)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Avg return: %+.2f%% | Median: %+.2f%% | Std: %.2f%%\n", s.AvgReturnPct, s.MedianPct, s.StdReturnPct)
	fmt.Fprintf(&b, "Best: %+.2f%% | Worst: %+.2f%%\n", s.MaxReturnPct, s.MinReturnPct)
	fmt.Fprintf(&b, "Sharpe-like: %.2f | Max drawdown: %.2f%%\n", s.SharpeLike, s.MaxDrawdown)
	if s.NoLosses {
		b.WriteString("Profit factor: no losing trades\n")
	} else {
		fmt.Fprintf(&b, "Profit factor: %.2f\n", s.ProfitFactor)
	}
	fmt.Fprintf(&b, "VaR95: %.2f%% | CVaR95: %.2f%%\n", s.VaR95, s.CVaR95)
	if s.DrawdownAlert {
		b.WriteString("⚠️ Drawdown above 20%\n")
	}

	if len(s.ByScore) > 0 {
		b.WriteString("By score:\n")
		for _, g := range s.ByScore {
			if g.Trades == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s: %d trades, win %.1f%%, avg %+.2f%%\n", g.Key, g.Trades, g.WinRatePct, g.AvgReturnPct)
		}
	}
	fmt.Fprintf(&b, "Assessment: %s", s.Assessment)

	return Message{Kind: KindPerformance, Title: "📈 Performance report", Body: b.String(), Payload: rep}
}

// Evolution renders a feedback run
func Evolution(res *feedback.EvolutionResult) Message {
	var b strings.Builder
	s := res.Session

	switch {
	case res.Throttled:
		fmt.Fprintf(&b, "Skipped: next review due %s\n", fmtDate(res.NextDue))
	case s != nil:
		fmt.Fprintf(&b, "Status: %s\n", s.Status)
		if s.ModelType != "" {
			fmt.Fprintf(&b, "Model: %s | Samples: %d\n", s.ModelType, s.TrainingSize+s.TestSize)
		}
		if s.Message != "" {
			fmt.Fprintf(&b, "%s\n", s.Message)
		}
		for _, imp := range s.Improvements {
			if imp.AppliedWeight > 0 {
				fmt.Fprintf(&b, "  %s: %.2f -> %.2f (%s)\n", imp.FactorID, imp.CurrentWeight, imp.AppliedWeight, imp.Kind)
			}
		}
		for _, f := range s.NewFactors {
			fmt.Fprintf(&b, "  new factor %s: %s (|r| %.3f)\n", f.FactorID, f.Formula, f.Correlation)
		}
	}

	return Message{
		Kind:    KindFeedback,
		Title:   "🧠 Factor review",
		Body:    strings.TrimRight(b.String(), "\n"),
		Payload: res,
	}
}

// ===== sections =====

func writeCondition(b *strings.Builder, cond *contracts.MarketCondition) {
	if cond == nil {
		b.WriteString("Market: unknown\n")
		return
	}
	fmt.Fprintf(b, "Market: %s | Risk: %s (%d/10)\n", cond.Condition, cond.RiskLevel, cond.RiskScore)
	fmt.Fprintf(b, "Suggestion: %s\n", cond.Suggestion)
	fmt.Fprintf(b, "Sentiment: %.1f | Max position: %.1f%%\n", cond.SentimentScore, cond.MaxPosition*100)

	t := cond.Trend
	if t.Close > 0 {
		side := "below"
		if t.IsAbove {
			side = "above"
		}
		fmt.Fprintf(b, "Index %s: %.2f vs MA %.2f (%s)\n", t.IndexCode, t.Close, t.MA, side)
	}
	if !cond.MarketFilter {
		b.WriteString("⛔ Market filter closed: no new positions\n")
	}

	lev := cond.Leverage
	if lev == nil || lev.FinancingBalance <= 0 {
		return
	}
	fmt.Fprintf(b, "Financing balance: %.2f trillion | Short balance: %.2f bn\n",
		lev.FinancingBalance/1e12, lev.ShortBalance/1e9)
	fmt.Fprintf(b, "Leverage risk: %d/10\n", lev.RiskScore)
	if lev.HasPrevious {
		fmt.Fprintf(b, "Financing change: %+.2f%% | Short change: %+.2f%%\n", lev.FinancingChangePct, lev.ShortChangePct)
	}
	if lev.BuyRepayRatio > 0 {
		fmt.Fprintf(b, "Financing buy/repay: %.2f\n", lev.BuyRepayRatio)
	}
	if len(lev.RiskFactors) > 0 {
		fmt.Fprintf(b, "Risk factors: %s\n", strings.Join(lev.RiskFactors, ", "))
	}
}

func writeEvaluation(b *strings.Builder, rank int, ev auction.Evaluation) {
	r := ev.Recommendation
	fmt.Fprintf(b, "\n#%d %s (%s)\n", rank, r.Name, r.Symbol)
	fmt.Fprintf(b, "  Score: %.1f (T-day %.1f, auction %.1f)\n", ev.FinalScore, r.TDayScore, ev.AuctionScore)
	fmt.Fprintf(b, "  Action: %s | Position: %.1f%% | Confidence: %s\n",
		ev.Decision.Action, ev.Decision.Position*100, ev.Decision.Confidence)
	if len(ev.Decision.Reasons) > 0 {
		fmt.Fprintf(b, "  Reasons: %s\n", strings.Join(ev.Decision.Reasons, ", "))
	}

	if s := ev.Snapshot; s != nil {
		b.WriteString("  Auction:\n")
		fmt.Fprintf(b, "    open change: %+.2f%%\n", s.OpenChangePct)
		fmt.Fprintf(b, "    volume ratio: %.2f\n", s.VolumeRatio)
		if s.Amount > 0 {
			fmt.Fprintf(b, "    amount: %.2fM\n", s.Amount/1e6)
		}
	}

	writeTDayMetrics(b, r)

	if s := ev.Snapshot; s != nil {
		fmt.Fprintf(b, "  Data source: %s\n", sourceLabel(s))
	}
}

func writeTDayMetrics(b *strings.Builder, r *contracts.Recommendation) {
	a := r.Snapshot.Attributes
	b.WriteString("  Limit-up:\n")
	fmt.Fprintf(b, "    pct change: %.2f%%\n", a.PctChange)
	if a.FirstLimitTime != "" {
		fmt.Fprintf(b, "    first limit: %s\n", clock(a.FirstLimitTime))
	}
	if r.Snapshot.SealRatio > 0 {
		fmt.Fprintf(b, "    seal/amount: %.3f\n", r.Snapshot.SealRatio)
	}
	if r.Snapshot.SealToMV > 0 {
		fmt.Fprintf(b, "    seal/float mv: %.2fbp\n", r.Snapshot.SealToMV*10000)
	}
	fmt.Fprintf(b, "    turnover: %.2f%%\n", a.TurnoverRate)
	hot := "no"
	if r.Snapshot.IsHotSector {
		hot = "yes"
	}
	fmt.Fprintf(b, "    hot sector: %s\n", hot)
}

func sourceLabel(s *contracts.AuctionSnapshot) string {
	var label string
	switch s.Tag {
	case contracts.TagLive:
		label = "live auction"
	case contracts.TagHistory:
		label = "historical auction"
	case contracts.TagSimulated:
		label = "simulated auction"
	default:
		label = string(s.Tag)
	}
	if s.Source != "" {
		label += " via " + s.Source
	}
	return label
}

// clock turns HHMMSS into HH:MM:SS
func clock(hhmmss string) string {
	if len(hhmmss) != 6 {
		return hhmmss
	}
	return hhmmss[:2] + ":" + hhmmss[2:4] + ":" + hhmmss[4:]
}

func dateOf(out *auction.Outcome) string {
	if out == nil {
		return "unknown date"
	}
	return fmtDate(out.Date)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
