package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"branchchat/model"
)

var ErrNoActivePlan = errors.New("no active plan")

// Balance is gem consumption within the current plan window.
type Balance struct {
	Used      float64   `json:"used"`
	Allotted  float64   `json:"allotted"`
	Remaining float64   `json:"remaining"`
	PlanID    string    `json:"plan_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

func (b *Balance) Exhausted() bool {
	return b.Remaining <= 0
}

// Ledger answers the pre-flight quota check of a turn.
type Ledger interface {
	Balance(ctx context.Context, userID string) (*Balance, error)
}

type QuotaStore interface {
	CurrentSubscription(ctx context.Context, uid string, now time.Time) (*model.Subscription, *model.Plan, error)
	ModelCosts(ctx context.Context) ([]model.LLMModel, error)
	Usage(ctx context.Context, uid string, from time.Time, to time.Time) ([]model.UsageRow, error)
}

type QuotaService struct {
	store  QuotaStore
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewQuotaService(store QuotaStore, logger logrus.FieldLogger) *QuotaService {
	return &QuotaService{store: store, logger: logger, now: time.Now}
}

// PlanWindow is the period usage is counted over. Free plans reset daily on
// the anniversary of the subscription's creation; paid plans span the whole
// subscription.
func PlanWindow(sub *model.Subscription, plan *model.Plan, now time.Time) (time.Time, time.Time) {
	if plan.Price > 0 {
		return sub.StartedAt, sub.EndAt
	}
	const day = 24 * time.Hour
	anchor := sub.CreatedAt
	if now.Before(anchor) {
		return anchor, anchor.Add(day)
	}
	n := now.Sub(anchor) / day
	from := anchor.Add(n * day)
	return from, from.Add(day)
}

// UsedGems prices each row by its model and role. Unknown models and empty
// rows cost nothing.
func UsedGems(rows []model.UsageRow, costs []model.LLMModel) float64 {
	byName := make(map[string]model.LLMModel, len(costs))
	for _, c := range costs {
		byName[c.Name] = c
	}
	var used float64
	for _, r := range rows {
		if r.Tokens <= 0 {
			continue
		}
		c, ok := byName[r.ModelName]
		if !ok {
			continue
		}
		switch r.Role {
		case model.MessageRoleUser:
			used += float64(r.Tokens) * c.UserCost
		case model.MessageRoleAssistant:
			used += float64(r.Tokens) * c.ModelCost
		}
	}
	return used
}

func (s *QuotaService) Balance(ctx context.Context, userID string) (*Balance, error) {
	now := s.now()
	sub, plan, err := s.store.CurrentSubscription(ctx, userID, now)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrNoActivePlan
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	from, to := PlanWindow(sub, plan, now)
	rows, err := s.store.Usage(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	costs, err := s.store.ModelCosts(ctx)
	if err != nil {
		return nil, err
	}

	used := UsedGems(rows, costs)
	s.logger.Debugf("gems for %s: used %.2f of %.2f in [%s, %s)", userID, used, plan.Gem, from.Format(time.RFC3339), to.Format(time.RFC3339))
	return &Balance{
		Used:      used,
		Allotted:  plan.Gem,
		Remaining: plan.Gem - used,
		PlanID:    plan.ID,
		From:      from,
		To:        to,
	}, nil
}

// WindowStart is where the user's counted usage begins. Rows created before
// it no longer affect any balance. Without an active plan nothing is counted.
func (s *QuotaService) WindowStart(ctx context.Context, userID string) (time.Time, error) {
	now := s.now()
	sub, plan, err := s.store.CurrentSubscription(ctx, userID, now)
	if errors.Is(err, model.ErrNotFound) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	from, _ := PlanWindow(sub, plan, now)
	return from, nil
}
