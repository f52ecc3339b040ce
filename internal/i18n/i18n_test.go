package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load([]string{"en", "es", "fr", "de"}, "en")
	require.NoError(t, err)
	return c
}

func TestLoadRejectsUnknownDefault(t *testing.T) {
	_, err := Load([]string{"en"}, "de")
	assert.Error(t, err)

	_, err = Load([]string{"en", "xx"}, "en")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	c := newCatalog(t)
	tests := map[string]string{
		"de":    "de",
		"de-AT": "de",
		"FR":    "fr",
		"es-MX": "es",
		"pt":    "en",
		"":      "en",
		"!!":    "en",
	}
	for in, want := range tests {
		assert.Equal(t, want, c.Resolve(in), in)
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	c := newCatalog(t)
	assert.Equal(t, "fr", c.FromAcceptLanguage("fr-CH, fr;q=0.9, en;q=0.8"))
	assert.Equal(t, "de", c.FromAcceptLanguage("en;q=0.5, de-DE;q=0.9"))
	assert.Equal(t, "en", c.FromAcceptLanguage("ja"))
	assert.Equal(t, "en", c.FromAcceptLanguage(""))
}

func TestTranslatePluralizes(t *testing.T) {
	c := newCatalog(t)
	assert.Equal(t, "7 days before", c.Translate("en", Phrase{Key: "days_before", Count: 7}))
	assert.Equal(t, "1 day before", c.Translate("en", Phrase{Key: "days_before", Count: 1}))
	assert.Equal(t, "1 Tag danach", c.Translate("de", Phrase{Key: "days_after", Count: 1}))
	assert.Equal(t, "3 días antes", c.Translate("es", Phrase{Key: "days_before", Count: 3}))
	assert.Equal(t, "2 jours après", c.Translate("fr", Phrase{Key: "days_after", Count: 2}))
	assert.Equal(t, "5 days after", c.Translate("it", Phrase{Key: "days_after", Count: 5}))
	assert.Equal(t, "missing_key", c.Translate("en", Phrase{Key: "missing_key", Count: 2}))
}

func TestFormatDate(t *testing.T) {
	c := newCatalog(t)
	d := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "15 March 2025", c.FormatDate("en", d))
	assert.Equal(t, "15. März 2025", c.FormatDate("de", d))
	assert.Equal(t, "15 de marzo de 2025", c.FormatDate("es", d))
	assert.Equal(t, "15 mars 2025", c.FormatDate("fr", d))
}

func TestSupportedIsACopy(t *testing.T) {
	c := newCatalog(t)
	s := c.Supported()
	s[0] = "zz"
	assert.Equal(t, []string{"en", "es", "fr", "de"}, c.Supported())
	assert.Equal(t, "Deutsch", c.Name("de"))
}
