package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/i18n"
	idb "order_reminder_service/internal/infra/database"
)

type HolderInput struct {
	Name         string
	Email        string
	LanguageCode string // Optional; the default language is used when empty
}

// Language is one entry of the supported-language listing.
type Language struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// HolderService manages reminder recipients and their language preference.
type HolderService struct {
	holders order.HolderRepository
	lang    *i18n.Catalog
	logger  *logrus.Entry
}

func NewHolderService(holders order.HolderRepository, lang *i18n.Catalog, logger *logrus.Entry) *HolderService {
	return &HolderService{holders: holders, lang: lang, logger: logger.WithField("component", "holders")}
}

func (s *HolderService) Create(ctx context.Context, in HolderInput) (*order.Holder, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, apperr.Validation("email", "is not a valid address")
	}
	lang := s.lang.Default()
	if in.LanguageCode != "" {
		if lang, err = s.checkLanguage(in.LanguageCode); err != nil {
			return nil, err
		}
	}

	h := &order.Holder{Name: name, Email: addr.Address, LanguageCode: lang}
	if err := s.holders.Create(ctx, h); err != nil {
		return nil, apperr.Transient("create holder", err)
	}
	s.logger.WithField("holder_id", h.ID).Info("Holder created")
	return h, nil
}

func (s *HolderService) Get(ctx context.Context, id int64) (*order.Holder, error) {
	h, err := s.holders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrHolderNotFound) {
			return nil, apperr.NotFound("holder", id)
		}
		return nil, apperr.Transient("get holder", err)
	}
	return h, nil
}

// UpdateLanguage stores a new preferred language. Already scheduled reminders keep the
// language they were rendered in.
func (s *HolderService) UpdateLanguage(ctx context.Context, id int64, code string) (*order.Holder, error) {
	lang, err := s.checkLanguage(code)
	if err != nil {
		return nil, err
	}
	if err := s.holders.UpdateLanguage(ctx, id, lang); err != nil {
		if errors.Is(err, idb.ErrHolderNotFound) {
			return nil, apperr.NotFound("holder", id)
		}
		return nil, apperr.Transient("update holder language", err)
	}
	s.logger.WithFields(logrus.Fields{"holder_id": id, "language": lang}).Info("Holder language updated")
	return s.Get(ctx, id)
}

func (s *HolderService) Languages() []Language {
	codes := s.lang.Supported()
	out := make([]Language, 0, len(codes))
	for _, c := range codes {
		out = append(out, Language{Code: c, Name: s.lang.Name(c), IsDefault: c == s.lang.Default()})
	}
	return out
}

// checkLanguage accepts regional variants of supported languages ("de-AT") but refuses
// languages that would silently fall back to the default.
func (s *HolderService) checkLanguage(code string) (string, error) {
	resolved := s.lang.Resolve(code)
	base := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	if resolved != base {
		return "", apperr.Validation("language_code", "must be one of %s", strings.Join(s.lang.Supported(), ", "))
	}
	return resolved, nil
}
