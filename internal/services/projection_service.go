package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cashplan/internal/core"
	"cashplan/internal/storage"

	"github.com/patrickmn/go-cache"
)

const (
	ckWeeklySummary  = "weekly_summary_scenario_%s"
	ckRunningBalance = "running_balance_scenario_%s"

	DefaultProjectionTTL = 5 * time.Minute
)

// WeeklySummary is the weekly projection of one scenario.
type WeeklySummary struct {
	Scenario core.Scenario
	Weeks    []core.WeekSummary
}

// ProjectionService reads the aggregation views and caches their results
// per scenario until a write invalidates them.
//
// Each scenario has a generation that Invalidate bumps. A result is cached
// only if the generation it was read under is still current, so a read that
// overlaps a write never repopulates the cache with pre-write data.
type ProjectionService struct {
	storage *storage.SQLiteRepository
	cache   *cache.Cache

	mu          sync.Mutex
	generations map[string]uint64
}

func NewProjectionService(storage *storage.SQLiteRepository, ttl time.Duration) *ProjectionService {
	if ttl <= 0 {
		ttl = DefaultProjectionTTL
	}
	return &ProjectionService{
		storage:     storage,
		cache:       cache.New(ttl, 2*ttl),
		generations: make(map[string]uint64),
	}
}

// Invalidate drops cached projections of a scenario.
func (p *ProjectionService) Invalidate(scenarioID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generations[scenarioID]++
	p.cache.Delete(fmt.Sprintf(ckWeeklySummary, scenarioID))
	p.cache.Delete(fmt.Sprintf(ckRunningBalance, scenarioID))
}

func (p *ProjectionService) generation(scenarioID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generations[scenarioID]
}

// store caches v unless the scenario was invalidated after gen was read.
func (p *ProjectionService) store(key, scenarioID string, gen uint64, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generations[scenarioID] != gen {
		return
	}
	p.cache.SetDefault(key, v)
}

func (p *ProjectionService) scenario(ctx context.Context, userID, companyID, scenarioID string) (core.Scenario, error) {
	if _, err := requireMember(ctx, p.storage, companyID, userID); err != nil {
		return core.Scenario{}, err
	}
	return p.storage.GetScenario(ctx, companyID, scenarioID)
}

func (p *ProjectionService) WeeklySummary(ctx context.Context, userID, companyID, scenarioID string) (WeeklySummary, error) {
	s, err := p.scenario(ctx, userID, companyID, scenarioID)
	if err != nil {
		return WeeklySummary{}, err
	}
	weeks, err := p.weeks(ctx, s)
	if err != nil {
		return WeeklySummary{}, err
	}
	return WeeklySummary{Scenario: s, Weeks: weeks}, nil
}

func (p *ProjectionService) weeks(ctx context.Context, s core.Scenario) ([]core.WeekSummary, error) {
	key := fmt.Sprintf(ckWeeklySummary, s.ID)
	if data, found := p.cache.Get(key); found {
		return data.([]core.WeekSummary), nil
	}
	gen := p.generation(s.ID)
	rows, err := p.storage.WeeklyAggregates(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	weeks := core.BuildWeeklySummary(s.StartDate, s.EndDate, rows)
	p.store(key, s.ID, gen, weeks)
	slog.DebugContext(ctx, "Weekly summary computed", "scenario_id", s.ID, "weeks", len(weeks), "rows", len(rows))
	return weeks, nil
}

func (p *ProjectionService) RunningBalance(ctx context.Context, userID, companyID, scenarioID string) ([]core.BalancePoint, error) {
	s, err := p.scenario(ctx, userID, companyID, scenarioID)
	if err != nil {
		return nil, err
	}
	return p.balance(ctx, s)
}

func (p *ProjectionService) balance(ctx context.Context, s core.Scenario) ([]core.BalancePoint, error) {
	key := fmt.Sprintf(ckRunningBalance, s.ID)
	if data, found := p.cache.Get(key); found {
		return data.([]core.BalancePoint), nil
	}
	gen := p.generation(s.ID)
	points, err := p.storage.RunningBalance(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	p.store(key, s.ID, gen, points)
	return points, nil
}

// Transactions pages through the effective rows of a scenario.
func (p *ProjectionService) Transactions(ctx context.Context, userID, companyID, scenarioID string, page core.Page) (core.PageResult[core.ScenarioFlow], error) {
	res := core.PageResult[core.ScenarioFlow]{Page: page}
	s, err := p.scenario(ctx, userID, companyID, scenarioID)
	if err != nil {
		return res, err
	}
	items, err := p.storage.ScenarioFlows(ctx, s.ID, page.Size, page.Offset())
	if err != nil {
		return res, err
	}
	total, err := p.storage.CountScenarioFlows(ctx, s.ID)
	if err != nil {
		return res, err
	}
	res.Items, res.Total = items, total
	return res, nil
}
