package reminder

import (
	"database/sql"
	"strings"
	"time"
)

// Direction places a reminder before or after the expiration date.
type Direction string

const (
	DirectionPre  Direction = "pre"
	DirectionPost Direction = "post"
)

func (d Direction) Valid() bool {
	return d == DirectionPre || d == DirectionPost
}

// RuleState is the tagged catalog state of a rule.
type RuleState string

const (
	RuleActive   RuleState = "active"
	RuleInactive RuleState = "inactive"
	RuleDeleted  RuleState = "deleted"
)

// Rule is a configured offset from expiration at which a reminder fires.
// An empty OrderTypeCodes allow-list applies the rule to every order type.
type Rule struct {
	ID             int64
	Name           string
	Description    string
	Direction      Direction
	Days           int
	OrderTypeCodes []string
	IsDefault      bool // Protected: may be deactivated but never deleted
	IsActive       bool
	SortOrder      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      sql.NullTime
}

func (r *Rule) State() RuleState {
	switch {
	case r.DeletedAt.Valid:
		return RuleDeleted
	case r.IsActive:
		return RuleActive
	default:
		return RuleInactive
	}
}

// AppliesTo reports whether the rule's allow-list admits the order type code.
func (r *Rule) AppliesTo(orderTypeCode string) bool {
	if len(r.OrderTypeCodes) == 0 {
		return true
	}
	for _, code := range r.OrderTypeCodes {
		if strings.EqualFold(code, orderTypeCode) {
			return true
		}
	}
	return false
}

// ScheduledAt returns the firing time for an order expiring at expiration.
func (r *Rule) ScheduledAt(expiration time.Time) time.Time {
	if r.Direction == DirectionPost {
		return expiration.AddDate(0, 0, r.Days)
	}
	return expiration.AddDate(0, 0, -r.Days)
}

// PhraseKey is the language table key describing the rule's offset.
func (r *Rule) PhraseKey() string {
	if r.Direction == DirectionPost {
		return "days_after"
	}
	return "days_before"
}
