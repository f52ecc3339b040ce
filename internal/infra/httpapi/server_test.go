package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/i18n"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/database/databasetest"
	"order_reminder_service/internal/infra/logger"
)

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

type testAPI struct {
	url    string
	db     *database.DB
	health error
}

func newTestAPI(t *testing.T, auth AuthConfig) *testAPI {
	t.Helper()
	ctx := context.Background()
	db := databasetest.New(t)
	_, err := database.Seed(ctx, db)
	require.NoError(t, err)
	lang, err := i18n.Load([]string{"en", "es", "fr", "de"}, "en")
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC) }
	log := logger.Discard()
	reminders := database.NewReminderRepository(db)
	orders := database.NewOrderRepository(db)
	types := database.NewOrderTypeRepository(db)
	holders := database.NewHolderRepository(db)

	catalog := app.NewIntervalCatalog(database.NewRuleRepository(db), time.Hour, log)
	templates := app.NewTemplateService(database.NewTemplateRepository(db), lang, time.Hour, log)
	templates.Now = now
	scheduler := app.NewReminderScheduler(app.SchedulerDeps{
		Orders: orders, Types: types, Holders: holders, Catalog: catalog, Templates: templates,
		Reminders: reminders, Languages: lang, RenewalURL: "https://shop.example/orders/{order_id}/renew",
	}, log)
	scheduler.Now = now
	lifecycle := app.NewLifecycleManager(reminders, log)
	lifecycle.Now = now
	sweep := app.NewDispatchSweep(reminders, orders, lifecycle, noopSender{}, log)
	sweep.Now = now
	orderSvc := app.NewOrderService(orders, types, holders, scheduler, lifecycle, log)
	orderSvc.Now = now

	api := &testAPI{db: db}
	handler, err := New(Config{
		Services: Services{
			Orders:    orderSvc,
			Holders:   app.NewHolderService(holders, lang, log),
			Scheduler: scheduler,
			Lifecycle: lifecycle,
			Sweep:     sweep,
			Catalog:   catalog,
			Templates: templates,
			Languages: lang,
		},
		Auth:   auth,
		Logger: log,
		Health: func(context.Context) error { return api.health },
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	api.url = srv.URL + "/api/v1"
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.url+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return res.StatusCode, nil
	}
	var out any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	if m, ok := out.(map[string]any); ok {
		return res.StatusCode, m
	}
	return res.StatusCode, map[string]any{"items": out}
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func errorDetail(body map[string]any, key string) any {
	e, _ := body["error"].(map[string]any)
	d, _ := e["details"].(map[string]any)
	return d[key]
}

func id(body map[string]any) int64 { return int64(body["id"].(float64)) }

func (a *testAPI) typeID(t *testing.T, code string) int64 {
	t.Helper()
	status, body := a.do(t, http.MethodGet, "/order-types", nil)
	require.Equal(t, http.StatusOK, status)
	for _, item := range body["items"].([]any) {
		m := item.(map[string]any)
		if m["code"] == code {
			return id(m)
		}
	}
	t.Fatalf("order type %s not seeded", code)
	return 0
}

func (a *testAPI) createOrder(t *testing.T) int64 {
	t.Helper()
	status, holder := a.do(t, http.MethodPost, "/holders", map[string]any{"name": "Acme", "email": "billing@acme.example"})
	require.Equal(t, http.StatusCreated, status, holder)

	status, o := a.do(t, http.MethodPost, "/orders", map[string]any{
		"holder_id":        id(holder),
		"order_type_id":    a.typeID(t, "TYPE_X"),
		"application_date": "2024-03-15",
	})
	require.Equal(t, http.StatusCreated, status, o)
	assert.Equal(t, "2025-03-15", o["expiration_date"])
	return id(o)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})
	status, body := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	api.health = errors.New("connection refused")
	status, body = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", errorCode(body))
}

func TestConcurrentServersShareErrorEnvelope(t *testing.T) {
	var wg sync.WaitGroup
	handlers := make([]http.Handler, 4)
	for i := range handlers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := New(Config{Logger: logger.Discard()})
			assert.NoError(t, err)
			handlers[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handlers {
		require.NotNil(t, h)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/holders", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(rec, req)

		assert.GreaterOrEqual(t, rec.Code, 400)
		assert.Less(t, rec.Code, 500)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, defaultCodeForStatus(rec.Code), errorCode(body))
	}
}

func TestOrderAndReminderFlow(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})
	orderID := api.createOrder(t)

	status, body := api.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/reminders", orderID), nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 4, "three pre rules and one post rule")
	first := items[0].(map[string]any)
	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, "2025-03-08T00:00:00Z", first["scheduled_at"])
	assert.Equal(t, "Type X Expiration Notice", first["subject"])

	status, body = api.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/reminders/schedule", orderID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["scheduled"], "scheduling twice creates nothing")

	reminderPath := fmt.Sprintf("/reminders/%d", id(first))
	status, body = api.do(t, http.MethodPost, reminderPath+"/cancel", map[string]any{"reason": "Customer renewed by phone"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, "Customer renewed by phone", body["error_message"])

	status, body = api.do(t, http.MethodPost, reminderPath+"/status", map[string]any{"status": "sent"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "precondition_failed", errorCode(body))
	assert.Equal(t, "reminder_not_pending", errorDetail(body, "reason"))

	second := fmt.Sprintf("/reminders/%d", id(items[1].(map[string]any)))
	status, body = api.do(t, http.MethodPost, second+"/status", map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "status", errorDetail(body, "field"))

	status, body = api.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/reminders/cancel", orderID), map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["cancelled"])

	status, body = api.do(t, http.MethodGet, "/reminders?status=cancelled", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 4)

	status, body = api.do(t, http.MethodPost, "/reminders/sweep", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestOrderUpdateAndQueries(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})
	orderID := api.createOrder(t)
	orderPath := fmt.Sprintf("/orders/%d", orderID)

	status, body := api.do(t, http.MethodGet, "/orders/expiring?days=60", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, body = api.do(t, http.MethodGet, "/orders/expiring?days=-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "days", errorDetail(body, "field"))

	status, body = api.do(t, http.MethodPatch, orderPath, map[string]any{"application_date": "2024-04-01"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2025-04-01", body["expiration_date"])

	status, body = api.do(t, http.MethodPatch, orderPath, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_active"])

	status, body = api.do(t, http.MethodPost, orderPath+"/reminders/schedule", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "order_not_schedulable", errorDetail(body, "reason"))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})

	status, body := api.do(t, http.MethodGet, "/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(body))

	status, body = api.do(t, http.MethodPost, "/orders", map[string]any{
		"holder_id": 1, "order_type_id": 1, "application_date": "15/03/2024",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", errorCode(body))
	assert.Equal(t, "application_date", errorDetail(body, "field"))

	status, body = api.do(t, http.MethodGet, "/reminder-intervals", nil)
	require.Equal(t, http.StatusOK, status)
	defaultRule := body["items"].([]any)[0].(map[string]any)
	require.Equal(t, true, defaultRule["is_default"])

	status, body = api.do(t, http.MethodDelete, fmt.Sprintf("/reminder-intervals/%d", id(defaultRule)), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "protected_rule", errorDetail(body, "reason"))

	status, body = api.do(t, http.MethodPost, fmt.Sprintf("/reminder-intervals/%d/toggle", id(defaultRule)), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "inactive", body["state"])
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})
	require.NoError(t, api.db.Close())

	status, body := api.do(t, http.MethodGet, "/orders/1", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", errorCode(body))
	e := body["error"].(map[string]any)
	assert.Equal(t, internalErrorMessage, e["message"])
}

func TestTemplatePreviewHonoursAcceptLanguage(t *testing.T) {
	api := newTestAPI(t, AuthConfig{})

	status, body := api.do(t, http.MethodGet, "/email-templates", nil)
	require.Equal(t, http.StatusOK, status)
	var tplID int64
	for _, item := range body["items"].([]any) {
		m := item.(map[string]any)
		if m["type"] == "pre" && m["language_code"] == "en" {
			tplID = id(m)
		}
	}
	require.NotZero(t, tplID)

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/email-templates/%d/preview", tplID), nil,
		"Accept-Language", "de-CH,de;q=0.9,en;q=0.5")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "de", body["language_code"])
	assert.Contains(t, body["body"], "15. Februar 2025")

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/email-templates/%d/preview?lang=es", tplID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "es", body["language_code"])
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	api := newTestAPI(t, AuthConfig{JWTSecret: secret})

	status, body := api.do(t, http.MethodGet, "/languages", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(body))

	status, _ = api.do(t, http.MethodGet, "/languages", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	status, body = api.do(t, http.MethodGet, "/languages", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 4)

	status, _ = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
}
