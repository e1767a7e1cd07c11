package decision

import (
	"context"
	"fmt"
	"sync"

	"payguard/internal/logger"
	"payguard/internal/scoring"
	"payguard/internal/types"
)

// Request is one selection round as supplied by a caller.
type Request struct {
	Candidates    []types.SimulationCandidate `json:"candidates"`
	Priority      string                      `json:"priority"`
	RiskTolerance string                      `json:"risk_tolerance"`
}

// Service validates input, runs the scorers and aggregates their output.
type Service struct {
	mu         sync.RWMutex
	dispatcher *Dispatcher
	aggregator Aggregator
}

// NewService wires the stock MEV and profit scorers behind a priority aggregator.
func NewService(weights Weights, penalties scoring.Penalties) *Service {
	s := &Service{}
	s.Reconfigure(weights, penalties)
	return s
}

// NewServiceWith allows custom scorers and aggregators.
func NewServiceWith(d *Dispatcher, agg Aggregator) *Service {
	return &Service{dispatcher: d, aggregator: agg}
}

// Reconfigure swaps aggregation weights and profit-score penalties.
func (s *Service) Reconfigure(weights Weights, penalties scoring.Penalties) {
	d := NewDispatcher(scoring.NewMEVScorer(), scoring.NewProfitScorer(penalties))
	agg := PriorityAggregator{Weights: weights}
	s.mu.Lock()
	s.dispatcher = d
	s.aggregator = agg
	s.mu.Unlock()
}

// Recommend runs a full selection round.
func (s *Service) Recommend(ctx context.Context, req Request) (Result, error) {
	if err := types.ValidateCandidates(req.Candidates); err != nil {
		return Result{}, err
	}
	policy, err := ParsePriority(req.Priority)
	if err != nil {
		return Result{}, err
	}
	tolerance, err := ParseTolerance(req.RiskTolerance)
	if err != nil {
		return Result{}, err
	}

	s.mu.RLock()
	d, agg := s.dispatcher, s.aggregator
	s.mu.RUnlock()

	in := scoring.Input{
		Candidates:    req.Candidates,
		Priority:      string(policy),
		RiskTolerance: tolerance,
	}
	outputs := d.Dispatch(ctx, in)
	res, err := agg.Aggregate(ctx, outputs, policy)
	if err != nil {
		return Result{}, fmt.Errorf("%s aggregation: %w", agg.Name(), err)
	}
	if _, ok := types.FindCandidate(req.Candidates, res.Final.RecommendedID); !ok {
		return Result{}, fmt.Errorf("aggregator returned unknown candidate %q", res.Final.RecommendedID)
	}
	logger.Infof("[decision] policy=%s tolerance=%s candidates=%d mev=%s profit=%s final=%s override=%v",
		policy, tolerance, len(req.Candidates), res.MEV.RecommendedID, res.Profit.RecommendedID,
		res.Final.RecommendedID, res.Override)
	return res, nil
}
