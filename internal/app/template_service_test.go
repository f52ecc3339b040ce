package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/reminder"
)

func TestTemplateServiceCacheFollowsWrites(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))

	got, err := e.templates.FindActive(ctx, reminder.DirectionPost, "es")
	require.NoError(t, err)
	assert.Nil(t, got)

	created, err := e.templates.Create(ctx, app.TemplateInput{
		Name: "post es", Type: reminder.DirectionPost, LanguageCode: "es",
		Subject: "{{order_type}} ha vencido", Body: "Hola {{business_name}}", IsActive: true,
	})
	require.NoError(t, err)

	got, err = e.templates.FindActive(ctx, reminder.DirectionPost, "es")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	_, err = e.templates.Update(ctx, created.ID, app.TemplateInput{
		Name: "post es", Type: reminder.DirectionPost, LanguageCode: "es",
		Subject: "Aviso", Body: "Hola", IsActive: false,
	})
	require.NoError(t, err)
	got, err = e.templates.FindActive(ctx, reminder.DirectionPost, "es")
	require.NoError(t, err)
	assert.Nil(t, got, "inactive templates are not served from a stale cache")

	require.NoError(t, e.templates.Delete(ctx, created.ID))
	_, err = e.templates.Get(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.templates.Delete(ctx, created.ID), apperr.ErrNotFound)
}

func TestTemplateServiceValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	valid := app.TemplateInput{Name: "n", Type: reminder.DirectionPre, LanguageCode: "en", Subject: "s", Body: "b"}

	for field, mutate := range map[string]func(*app.TemplateInput){
		"name":          func(in *app.TemplateInput) { in.Name = " " },
		"type":          func(in *app.TemplateInput) { in.Type = "during" },
		"language_code": func(in *app.TemplateInput) { in.LanguageCode = "pt" },
		"subject":       func(in *app.TemplateInput) { in.Subject = "" },
		"body":          func(in *app.TemplateInput) { in.Body = "" },
	} {
		in := valid
		mutate(&in)
		_, err := e.templates.Create(ctx, in)
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve, field)
		assert.Equal(t, field, ve.Field)
	}
}

func TestTemplateServicePreview(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC))
	tpl, err := e.templates.Create(ctx, app.TemplateInput{
		Name: "pre", Type: reminder.DirectionPre, LanguageCode: "en", IsActive: true,
		Subject: "{{order_type}} expires on {{expiration_date}}",
		Body:    "Hello {{business_name}}, {{interval}} expiration. {{nope}}",
	})
	require.NoError(t, err)

	p, err := e.templates.Preview(ctx, tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "en", p.LanguageCode)
	assert.Equal(t, "Sample Order Type expires on 15 February 2025", p.Subject)
	assert.Equal(t, "Hello Sample Business Ltd, 7 days before expiration. {{nope}}", p.Body)

	p, err = e.templates.Preview(ctx, tpl.ID, "fr-CA")
	require.NoError(t, err)
	assert.Equal(t, "fr", p.LanguageCode)
	assert.Equal(t, "Sample Order Type expires on 15 février 2025", p.Subject)
}

func TestHolderServiceLanguages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))

	h, err := e.holders.Create(ctx, app.HolderInput{Name: "Acme", Email: "Billing <billing@acme.example>"})
	require.NoError(t, err)
	assert.Equal(t, "billing@acme.example", h.Email)
	assert.Equal(t, "en", h.LanguageCode)

	h, err = e.holders.UpdateLanguage(ctx, h.ID, "de-CH")
	require.NoError(t, err)
	assert.Equal(t, "de", h.LanguageCode)

	_, err = e.holders.UpdateLanguage(ctx, h.ID, "pt-BR")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "language_code", ve.Field)

	_, err = e.holders.UpdateLanguage(ctx, 999, "fr")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.holders.Create(ctx, app.HolderInput{Name: "Broken", Email: "not-an-email"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)

	langs := e.holders.Languages()
	require.Len(t, langs, 4)
	assert.Equal(t, app.Language{Code: "en", Name: "English", IsDefault: true}, langs[0])
	assert.Equal(t, "de", langs[3].Code)
}
