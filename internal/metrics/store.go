package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"foodplanner/internal/database"
	"foodplanner/internal/shared"
)

// ExecutionMetric records metadata for a single model call.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Store persists AI usage in the ai_usage table.
type Store struct {
	db        *database.DB
	collector *Collector
}

// NewStore creates a Store. When collector is not nil recorded tokens are
// also counted in Prometheus.
func NewStore(db *database.DB, collector *Collector) *Store {
	return &Store{db: db, collector: collector}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = database.Now()
	}

	_, err := s.db.SQL.ExecContext(ctx, s.db.SQL.Rebind(`INSERT INTO ai_usage
		(agent_name, model, prompt_tokens, completion_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to record AI usage: %w", err)
	}

	if s.collector != nil {
		s.collector.ObserveTokens(m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens)
	}
	return nil
}

// RecordMeta records a model call described by meta. Calls the provider
// reported no token counts for are stored with zero tokens so they still
// count as executions.
func (s *Store) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	return s.Record(ctx, MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string `json:"date"`
	TotalPrompt     int    `json:"totalPrompt"`
	TotalCompletion int    `json:"totalCompletion"`
	TotalExecution  int    `json:"totalExecution"`
}

type usageRow struct {
	PromptTokens     int                `db:"prompt_tokens"`
	CompletionTokens int                `db:"completion_tokens"`
	CreatedAt        database.Timestamp `db:"created_at"`
}

// GetDailyUsage returns per-day totals (UTC dates) for the last days days,
// newest day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := database.Now().AddDate(0, 0, -days)

	var rows []usageRow
	err := s.db.SQL.SelectContext(ctx, &rows, s.db.SQL.Rebind(`SELECT prompt_tokens, completion_tokens, created_at
		FROM ai_usage WHERE created_at >= ?`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query AI usage: %w", err)
	}

	byDay := make(map[string]*DailyUsage)
	for _, r := range rows {
		day := r.CreatedAt.UTC().Format(time.DateOnly)
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
		}
		u.TotalPrompt += r.PromptTokens
		u.TotalCompletion += r.CompletionTokens
		u.TotalExecution++
	}

	results := make([]DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := database.Now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.SQL.ExecContext(ctx, s.db.SQL.Rebind(`DELETE FROM ai_usage WHERE created_at < ?`), threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up AI usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted AI usage: %w", err)
	}
	return n, nil
}

// MapUsage converts token usage of one call to an ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        database.Now(),
	}
}
