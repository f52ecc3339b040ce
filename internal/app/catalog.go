package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	idb "order_reminder_service/internal/infra/database"
)

const catalogCacheSize = 256

// RuleInput carries the editable attributes of an interval rule.
type RuleInput struct {
	Name           string
	Description    string
	Direction      reminder.Direction
	Days           int
	OrderTypeCodes []string
	IsActive       bool
	SortOrder      int
}

// IntervalCatalog manages interval rules and resolves the rules applying to an order type.
// Resolutions are cached per order type code; every write purges the cache before returning.
type IntervalCatalog struct {
	rules  reminder.RuleRepository
	logger *logrus.Entry
	Now    func() time.Time

	mu         sync.Mutex
	generation uint64
	cache      *expirable.LRU[string, []*reminder.Rule]
}

func NewIntervalCatalog(rules reminder.RuleRepository, cacheTTL time.Duration, logger *logrus.Entry) *IntervalCatalog {
	return &IntervalCatalog{
		rules:  rules,
		logger: logger.WithField("component", "interval_catalog"),
		Now:    time.Now,
		cache:  expirable.NewLRU[string, []*reminder.Rule](catalogCacheSize, nil, cacheTTL),
	}
}

// Resolve returns the active, non-deleted rules applying to t, ordered by sort order then
// creation order, each rule at most once.
func (c *IntervalCatalog) Resolve(ctx context.Context, t *order.OrderType) ([]*reminder.Rule, error) {
	key := strings.ToUpper(t.Code)
	if rules, ok := c.cache.Get(key); ok {
		return rules, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	active, err := c.rules.ListActive(ctx)
	if err != nil {
		return nil, apperr.Transient("load interval rules", err)
	}
	seen := make(map[int64]struct{}, len(active))
	resolved := make([]*reminder.Rule, 0, len(active))
	for _, r := range active {
		if _, dup := seen[r.ID]; dup || !r.AppliesTo(t.Code) {
			continue
		}
		seen[r.ID] = struct{}{}
		resolved = append(resolved, r)
	}

	c.mu.Lock()
	// A write that happened while we were reading must not be shadowed by this result.
	if gen == c.generation {
		c.cache.Add(key, resolved)
	}
	c.mu.Unlock()
	return resolved, nil
}

// Invalidate drops every cached resolution.
func (c *IntervalCatalog) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.cache.Purge()
	c.mu.Unlock()
	c.logger.Debug("Interval catalog cache invalidated")
}

func (c *IntervalCatalog) List(ctx context.Context, includeDeleted bool) ([]*reminder.Rule, error) {
	rules, err := c.rules.ListAll(ctx, includeDeleted)
	if err != nil {
		return nil, apperr.Transient("list interval rules", err)
	}
	return rules, nil
}

func (c *IntervalCatalog) Get(ctx context.Context, id int64) (*reminder.Rule, error) {
	r, err := c.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return nil, apperr.NotFound("interval rule", id)
		}
		return nil, apperr.Transient("get interval rule", err)
	}
	return r, nil
}

func (c *IntervalCatalog) Create(ctx context.Context, in RuleInput) (*reminder.Rule, error) {
	if err := c.validate(ctx, in, 0); err != nil {
		return nil, err
	}
	r := &reminder.Rule{
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Direction:      in.Direction,
		Days:           in.Days,
		OrderTypeCodes: normalizeCodes(in.OrderTypeCodes),
		IsActive:       in.IsActive,
		SortOrder:      in.SortOrder,
	}
	if err := c.rules.Create(ctx, r); err != nil {
		if errors.Is(err, idb.ErrDuplicateRule) {
			return nil, duplicateRule(in)
		}
		return nil, apperr.Transient("create interval rule", err)
	}
	c.Invalidate()
	c.logger.WithFields(logrus.Fields{"rule_id": r.ID, "direction": r.Direction, "days": r.Days}).Info("Interval rule created")
	return r, nil
}

func (c *IntervalCatalog) Update(ctx context.Context, id int64, in RuleInput) (*reminder.Rule, error) {
	r, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.validate(ctx, in, id); err != nil {
		return nil, err
	}
	r.Name = strings.TrimSpace(in.Name)
	r.Description = in.Description
	r.Direction = in.Direction
	r.Days = in.Days
	r.OrderTypeCodes = normalizeCodes(in.OrderTypeCodes)
	r.IsActive = in.IsActive
	r.SortOrder = in.SortOrder
	if err := c.rules.Update(ctx, r); err != nil {
		switch {
		case errors.Is(err, idb.ErrDuplicateRule):
			return nil, duplicateRule(in)
		case errors.Is(err, idb.ErrRuleNotFound):
			return nil, apperr.NotFound("interval rule", id)
		}
		return nil, apperr.Transient("update interval rule", err)
	}
	c.Invalidate()
	c.logger.WithField("rule_id", id).Info("Interval rule updated")
	return r, nil
}

// Delete soft-deletes a rule. Default rules are protected and can only be deactivated.
func (c *IntervalCatalog) Delete(ctx context.Context, id int64) error {
	r, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.IsDefault {
		return apperr.ProtectedRule(id)
	}
	if err := c.rules.SoftDelete(ctx, id, c.Now()); err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return apperr.NotFound("interval rule", id)
		}
		return apperr.Transient("delete interval rule", err)
	}
	c.Invalidate()
	c.logger.WithField("rule_id", id).Info("Interval rule deleted")
	return nil
}

// ToggleActive flips the active flag and returns the updated rule.
func (c *IntervalCatalog) ToggleActive(ctx context.Context, id int64) (*reminder.Rule, error) {
	r, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.rules.SetActive(ctx, id, !r.IsActive, c.Now()); err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return nil, apperr.NotFound("interval rule", id)
		}
		return nil, apperr.Transient("toggle interval rule", err)
	}
	r.IsActive = !r.IsActive
	c.Invalidate()
	c.logger.WithFields(logrus.Fields{"rule_id": id, "is_active": r.IsActive}).Info("Interval rule toggled")
	return r, nil
}

func (c *IntervalCatalog) validate(ctx context.Context, in RuleInput, excludeID int64) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name", "is required")
	}
	if !in.Direction.Valid() {
		return apperr.Validation("direction", "must be %q or %q", reminder.DirectionPre, reminder.DirectionPost)
	}
	if in.Days < 1 {
		return apperr.Validation("days", "must be at least 1")
	}
	exists, err := c.rules.ExistsWithDays(ctx, in.Direction, in.Days, excludeID)
	if err != nil {
		return apperr.Transient("check duplicate interval rule", err)
	}
	if exists {
		return duplicateRule(in)
	}
	return nil
}

func duplicateRule(in RuleInput) error {
	return apperr.Validation("days", "a %s-expiration rule for %d days already exists", in.Direction, in.Days)
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
