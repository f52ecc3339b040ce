package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
)

//go:embed seed/defaults.yaml
var defaultSeed []byte

type seedFile struct {
	OrderTypes []struct {
		Code         string `yaml:"code"`
		Name         string `yaml:"name"`
		Policy       string `yaml:"policy"`
		PeriodMonths int32  `yaml:"period_months"`
	} `yaml:"order_types"`
	Rules []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Direction   string   `yaml:"direction"`
		Days        int      `yaml:"days"`
		Codes       []string `yaml:"order_type_codes"`
		SortOrder   int      `yaml:"sort_order"`
	} `yaml:"rules"`
	Templates []struct {
		Language string       `yaml:"language"`
		Pre      seedTemplate `yaml:"pre"`
		Post     seedTemplate `yaml:"post"`
	} `yaml:"templates"`
}

type seedTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// SeedResult counts the rows inserted by Seed.
type SeedResult struct {
	OrderTypes int `json:"order_types"`
	Rules      int `json:"rules"`
	Templates  int `json:"templates"`
}

// Seed inserts the default order types, default interval rules and the template set.
// Rows that already exist (same code, same direction/days, same type/language) are left alone.
func Seed(ctx context.Context, db *DB) (SeedResult, error) {
	var (
		res  SeedResult
		file seedFile
	)
	if err := yaml.Unmarshal(defaultSeed, &file); err != nil {
		return res, fmt.Errorf("parse seed file: %w", err)
	}

	types := NewOrderTypeRepository(db)
	for _, ot := range file.OrderTypes {
		if _, err := types.GetByCode(ctx, ot.Code); err == nil {
			continue
		} else if !errors.Is(err, ErrOrderTypeNotFound) {
			return res, err
		}
		t := &order.OrderType{
			Code:     ot.Code,
			Name:     ot.Name,
			Policy:   order.ExpirationPolicy(ot.Policy),
			IsActive: true,
		}
		if ot.PeriodMonths > 0 {
			t.PeriodMonths = sql.NullInt32{Int32: ot.PeriodMonths, Valid: true}
		}
		if err := types.Create(ctx, t); err != nil {
			return res, fmt.Errorf("seed order type %s: %w", ot.Code, err)
		}
		res.OrderTypes++
	}

	rules := NewRuleRepository(db)
	for _, sr := range file.Rules {
		exists, err := rules.ExistsWithDays(ctx, reminder.Direction(sr.Direction), sr.Days, 0)
		if err != nil {
			return res, err
		}
		if exists {
			continue
		}
		rule := &reminder.Rule{
			Name:           sr.Name,
			Description:    sr.Description,
			Direction:      reminder.Direction(sr.Direction),
			Days:           sr.Days,
			OrderTypeCodes: sr.Codes,
			IsDefault:      true,
			IsActive:       true,
			SortOrder:      sr.SortOrder,
		}
		if err := rules.Create(ctx, rule); err != nil {
			return res, fmt.Errorf("seed rule %q: %w", sr.Name, err)
		}
		res.Rules++
	}

	templates := NewTemplateRepository(db)
	for _, st := range file.Templates {
		for direction, content := range map[reminder.Direction]seedTemplate{
			reminder.DirectionPre:  st.Pre,
			reminder.DirectionPost: st.Post,
		} {
			if _, err := templates.FindActive(ctx, direction, st.Language); err == nil {
				continue
			} else if !errors.Is(err, ErrTemplateNotFound) {
				return res, err
			}
			t := &template.Template{
				Name:         fmt.Sprintf("%s-expiration (%s)", direction, st.Language),
				Type:         direction,
				LanguageCode: st.Language,
				Subject:      content.Subject,
				Body:         content.Body,
				IsActive:     true,
			}
			if err := templates.Create(ctx, t); err != nil {
				return res, fmt.Errorf("seed template %s/%s: %w", direction, st.Language, err)
			}
			res.Templates++
		}
	}
	return res, nil
}
