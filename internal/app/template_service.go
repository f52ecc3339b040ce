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
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
	"order_reminder_service/internal/i18n"
	idb "order_reminder_service/internal/infra/database"
)

// TemplateInput carries the editable attributes of an email template.
type TemplateInput struct {
	Name         string
	Type         reminder.Direction
	LanguageCode string
	Subject      string
	Body         string
	IsActive     bool
}

// Preview is a template rendered against sample data.
type Preview struct {
	TemplateID   int64
	LanguageCode string
	Subject      string
	Body         string
}

// TemplateService manages email templates and serves cached active-template lookups.
type TemplateService struct {
	repo   template.Repository
	lang   *i18n.Catalog
	logger *logrus.Entry
	Now    func() time.Time

	mu         sync.Mutex
	generation uint64
	cache      *expirable.LRU[string, *template.Template]
}

func NewTemplateService(repo template.Repository, lang *i18n.Catalog, cacheTTL time.Duration, logger *logrus.Entry) *TemplateService {
	return &TemplateService{
		repo:   repo,
		lang:   lang,
		logger: logger.WithField("component", "templates"),
		Now:    time.Now,
		cache:  expirable.NewLRU[string, *template.Template](64, nil, cacheTTL),
	}
}

// FindActive returns the active template for (direction, language) or nil when none exists.
func (s *TemplateService) FindActive(ctx context.Context, direction reminder.Direction, languageCode string) (*template.Template, error) {
	key := string(direction) + ":" + languageCode
	if t, ok := s.cache.Get(key); ok {
		return t, nil
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	t, err := s.repo.FindActive(ctx, direction, languageCode)
	if err != nil {
		if errors.Is(err, idb.ErrTemplateNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find active template", err)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.cache.Add(key, t)
	}
	s.mu.Unlock()
	return t, nil
}

// Resolve finds a template for language, falling back to the default language.
// It returns nil when neither exists.
func (s *TemplateService) Resolve(ctx context.Context, direction reminder.Direction, languageCode string) (*template.Template, error) {
	t, err := s.FindActive(ctx, direction, languageCode)
	if err != nil || t != nil {
		return t, err
	}
	if fallback := s.lang.Default(); fallback != languageCode {
		return s.FindActive(ctx, direction, fallback)
	}
	return nil, nil
}

func (s *TemplateService) invalidate() {
	s.mu.Lock()
	s.generation++
	s.cache.Purge()
	s.mu.Unlock()
}

func (s *TemplateService) List(ctx context.Context) ([]*template.Template, error) {
	ts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Transient("list templates", err)
	}
	return ts, nil
}

func (s *TemplateService) Get(ctx context.Context, id int64) (*template.Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrTemplateNotFound) {
			return nil, apperr.NotFound("email template", id)
		}
		return nil, apperr.Transient("get template", err)
	}
	return t, nil
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*template.Template, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	t := &template.Template{
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		LanguageCode: in.LanguageCode,
		Subject:      in.Subject,
		Body:         in.Body,
		IsActive:     in.IsActive,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperr.Transient("create template", err)
	}
	s.invalidate()
	s.logger.WithFields(logrus.Fields{"template_id": t.ID, "type": t.Type, "language": t.LanguageCode}).Info("Template created")
	return t, nil
}

func (s *TemplateService) Update(ctx context.Context, id int64, in TemplateInput) (*template.Template, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	t.Name = strings.TrimSpace(in.Name)
	t.Type = in.Type
	t.LanguageCode = in.LanguageCode
	t.Subject = in.Subject
	t.Body = in.Body
	t.IsActive = in.IsActive
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, idb.ErrTemplateNotFound) {
			return nil, apperr.NotFound("email template", id)
		}
		return nil, apperr.Transient("update template", err)
	}
	s.invalidate()
	s.logger.WithField("template_id", id).Info("Template updated")
	return t, nil
}

// Delete removes a template. Already scheduled reminders keep their rendered content.
func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, idb.ErrTemplateNotFound) {
			return apperr.NotFound("email template", id)
		}
		return apperr.Transient("delete template", err)
	}
	s.invalidate()
	s.logger.WithField("template_id", id).Info("Template deleted")
	return nil
}

// Preview renders the template with sample values in languageCode (the template's own
// language when empty).
func (s *TemplateService) Preview(ctx context.Context, id int64, languageCode string) (*Preview, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lang := t.LanguageCode
	if languageCode != "" {
		lang = s.lang.Resolve(languageCode)
	}
	sampleRule := &reminder.Rule{Direction: t.Type, Days: 7}
	expiration := s.Now().AddDate(0, 1, 0)
	data := map[string]string{
		template.KeyBusinessName:   "Sample Business Ltd",
		template.KeyHolderName:     "Sample Business Ltd",
		template.KeyOrderType:      "Sample Order Type",
		template.KeyOrderCode:      "SAMPLE",
		template.KeyExpirationDate: s.lang.FormatDate(lang, expiration),
		template.KeyInterval:       s.lang.Translate(lang, i18n.Phrase{Key: sampleRule.PhraseKey(), Count: sampleRule.Days}),
		template.KeyRenewalLink:    "https://example.com/renew",
	}
	subject, body := t.Render(data)
	return &Preview{TemplateID: t.ID, LanguageCode: lang, Subject: subject, Body: body}, nil
}

func (s *TemplateService) validate(in TemplateInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("name", "is required")
	case !in.Type.Valid():
		return apperr.Validation("type", "must be %q or %q", reminder.DirectionPre, reminder.DirectionPost)
	case !s.lang.IsSupported(in.LanguageCode):
		return apperr.Validation("language_code", "must be one of %s", strings.Join(s.lang.Supported(), ", "))
	case strings.TrimSpace(in.Subject) == "":
		return apperr.Validation("subject", "is required")
	case strings.TrimSpace(in.Body) == "":
		return apperr.Validation("body", "is required")
	}
	return nil
}
