package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"slope-monitor-backend/config"
	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/db"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/store"
)

type testAPI struct {
	db      *gorm.DB
	manager *auth.Manager
	router  *gin.Engine
	admin   string
	viewer  string
}

func testServerConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.RateLimitPerSec = 1000
	cfg.RateLimitBurst = 1000
	cfg.LoginRateLimitPerSec = 1000
	return cfg
}

func newTestAPI(t *testing.T, cfg config.ServerConfig, vapid *webpush.Options) *testAPI {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	for _, u := range []struct {
		email string
		admin bool
	}{{"admin@example.com", true}, {"viewer@example.com", false}} {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, s.UpsertUser(context.Background(), model.User{Email: u.email, PasswordHash: string(hash), Admin: u.admin}))
	}

	manager := auth.NewManager(s, "test-secret", time.Hour)
	router := NewRouter(cfg, Deps{
		Store:   s,
		Auth:    manager,
		Webpush: vapid,
		Options: Options{WindowHours: 24, ReadingLimit: 100, AlertLimit: 50, Location: time.UTC},
	})

	admin, _, err := manager.SignIn(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	viewer, _, err := manager.SignIn(context.Background(), "viewer@example.com", "secret")
	require.NoError(t, err)

	return &testAPI{db: gormDB, manager: manager, router: router, admin: admin, viewer: viewer}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLogin(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)

	testCases := []struct {
		name       string
		body       any
		expectCode int
	}{
		{"admin", gin.H{"email": "admin@example.com", "password": "secret"}, http.StatusOK},
		{"viewer", gin.H{"email": "viewer@example.com", "password": "secret"}, http.StatusForbidden},
		{"wrong password", gin.H{"email": "admin@example.com", "password": "nope"}, http.StatusUnauthorized},
		{"missing fields", gin.H{"email": "admin@example.com"}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/auth/login", "", tc.body)
			assert.Equal(t, tc.expectCode, w.Code, w.Body.String())
		})
	}

	w := a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@example.com", "password": "secret"})
	resp := decode[sessionResponse](t, w)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.IsAdmin)
	require.NotNil(t, resp.User)
	assert.Equal(t, "admin@example.com", resp.User.Email)
}

func TestSessionAndLogout(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)

	s := decode[sessionResponse](t, a.do(http.MethodGet, "/api/auth/session", a.admin, nil))
	assert.True(t, s.IsAdmin)
	require.NotNil(t, s.User)

	s = decode[sessionResponse](t, a.do(http.MethodGet, "/api/auth/session", a.viewer, nil))
	assert.False(t, s.IsAdmin)
	assert.Nil(t, s.User)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/auth/logout", a.admin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/devices", a.admin, nil).Code)

	s = decode[sessionResponse](t, a.do(http.MethodGet, "/api/auth/session", a.admin, nil))
	assert.Nil(t, s.User)

	// Logging out without a session is not an error.
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/auth/logout", "", nil).Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)

	for _, path := range []string{"/api/devices", "/api/alerts", "/api/thresholds/D1", "/api/devices/D1/readings"} {
		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, path, a.viewer, nil).Code, path)
		assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, a.admin, nil).Code, path)
	}
}

func TestDevicesAndReadings(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, a.db.Create([]model.SensorReading{
		{DeviceID: "D1", Timestamp: now.Add(-time.Hour), TiltX: 2},
		{DeviceID: "D1", Timestamp: now.Add(-3 * time.Hour), TiltX: 1},
		{DeviceID: "D1", Timestamp: now.Add(-30 * time.Hour), TiltX: 9},
		{DeviceID: "D2", Timestamp: now, TiltX: 3},
	}).Error)

	w := a.do(http.MethodGet, "/api/devices", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"devices":["D1","D2"]}`, w.Body.String())
	assert.Equal(t, "HIT", a.do(http.MethodGet, "/api/devices", a.admin, nil).Header().Get("X-Cache"))

	type readingsResponse struct {
		Hours    int                   `json:"hours"`
		Readings []model.SensorReading `json:"readings"`
	}
	r := decode[readingsResponse](t, a.do(http.MethodGet, "/api/devices/D1/readings", a.admin, nil))
	assert.Equal(t, 24, r.Hours)
	require.Len(t, r.Readings, 2)
	assert.Equal(t, 1.0, r.Readings[0].TiltX)
	assert.Equal(t, 2.0, r.Readings[1].TiltX)

	r = decode[readingsResponse](t, a.do(http.MethodGet, "/api/devices/D1/readings?hours=48", a.admin, nil))
	assert.Len(t, r.Readings, 3)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/devices/D1/readings?hours=-1", a.admin, nil).Code)

	r = decode[readingsResponse](t, a.do(http.MethodGet, "/api/devices/unknown/readings", a.admin, nil))
	assert.NotNil(t, r.Readings)
	assert.Empty(t, r.Readings)
}

func TestDeviceStatus(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)
	require.NoError(t, a.db.Create(&model.SensorReading{DeviceID: "D1", Timestamp: time.Now().UTC(), TiltX: -20, SoilMoisture: 50, Humidity: 91}).Error)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/devices/D9/status", a.admin, nil).Code)

	w := a.do(http.MethodGet, "/api/devices/D1/status", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[deviceStatusResponse](t, w)
	assert.Equal(t, "warning", string(resp.Status.TiltX))
	assert.Equal(t, "normal", string(resp.Status.SoilMoisture))
	assert.Equal(t, "warning", string(resp.Status.Humidity))
	require.NotNil(t, resp.Thresholds)
	assert.Equal(t, 15.0, resp.Thresholds.TiltMax)
	assert.Len(t, resp.Cards, 4)
}

func TestAlertsAndAcknowledge(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)
	ts := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)
	require.NoError(t, a.db.Create([]model.Alert{
		{ID: "a1", DeviceID: "D1", Level: model.AlertLevelHigh, Message: "Tilt", Timestamp: ts, Value: 20, Threshold: 15},
		{ID: "a2", DeviceID: "D2", Level: model.AlertLevelInfo, Message: "Hum", Timestamp: ts.Add(time.Minute), Value: 91, Threshold: 90},
	}).Error)

	type alertsResponse struct {
		Alerts []struct {
			ID          string `json:"id"`
			DisplayTime string `json:"display_time"`
			ValueText   string `json:"value_text"`
		} `json:"alerts"`
	}

	all := decode[alertsResponse](t, a.do(http.MethodGet, "/api/alerts", a.admin, nil))
	require.Len(t, all.Alerts, 2)
	assert.Equal(t, "a2", all.Alerts[0].ID, "newest first")
	assert.Equal(t, "Mar 7, 09:05", all.Alerts[1].DisplayTime)
	assert.Equal(t, "Value: 20.00 (Threshold: 15)", all.Alerts[1].ValueText)

	d1 := decode[alertsResponse](t, a.do(http.MethodGet, "/api/alerts?device_id=D1", a.admin, nil))
	require.Len(t, d1.Alerts, 1)

	assert.Equal(t, http.StatusAccepted, a.do(http.MethodPost, "/api/alerts/a1/ack", a.admin, nil).Code)
	assert.Equal(t, http.StatusAccepted, a.do(http.MethodPost, "/api/alerts/a1/ack", a.admin, nil).Code)
	assert.Equal(t, http.StatusAccepted, a.do(http.MethodPost, "/api/alerts/missing/ack", a.admin, nil).Code)

	d1 = decode[alertsResponse](t, a.do(http.MethodGet, "/api/alerts?device_id=D1", a.admin, nil))
	assert.Empty(t, d1.Alerts)
	acked := decode[alertsResponse](t, a.do(http.MethodGet, "/api/alerts?acknowledged=true", a.admin, nil))
	require.Len(t, acked.Alerts, 1)
	assert.Equal(t, "a1", acked.Alerts[0].ID)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/alerts?acknowledged=maybe", a.admin, nil).Code)
}

func TestThresholds(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)

	got := decode[model.Thresholds](t, a.do(http.MethodGet, "/api/thresholds/D1", a.admin, nil))
	assert.Equal(t, model.DefaultThresholds("D1"), got)
	var count int64
	require.NoError(t, a.db.Model(&model.Thresholds{}).Count(&count).Error)
	assert.Zero(t, count, "defaults are not written back")

	w := a.do(http.MethodPut, "/api/thresholds/D1", a.admin, gin.H{"tilt_max": "12.5", "humidity_max": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Thresholds updated successfully")

	got = decode[model.Thresholds](t, a.do(http.MethodGet, "/api/thresholds/D1", a.admin, nil))
	assert.Equal(t, 12.5, got.TiltMax)
	assert.Equal(t, 90.0, got.HumidityMax)

	w = a.do(http.MethodPut, "/api/thresholds/D1", a.admin, gin.H{"soil_moisture_min": "ten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Error updating thresholds: soil_moisture_min: unable to parse number: \"ten\"","field":"soil_moisture_min"}`, w.Body.String())

	got = decode[model.Thresholds](t, a.do(http.MethodGet, "/api/thresholds/D1", a.admin, nil))
	assert.Equal(t, 12.5, got.TiltMax, "failed saves change nothing")

	w = a.do(http.MethodPut, "/api/thresholds/D1", a.admin, gin.H{"tilt_max": 20, "soil_moisture_max": 75.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode[model.Thresholds](t, a.do(http.MethodGet, "/api/thresholds/D1", a.admin, nil))
	assert.Equal(t, 20.0, got.TiltMax)
	assert.Equal(t, 75.5, got.SoilMoistureMax)

	w = a.do(http.MethodPut, "/api/thresholds/D1", a.admin, gin.H{"tilt_max": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVAPIDPublicKey(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodGet, "/api/vapid_public_key", "", nil).Code)

	a = newTestAPI(t, testServerConfig(), &webpush.Options{VAPIDPublicKey: "BPublic"})
	w := a.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPublic","min_level":"high"}`, w.Body.String())
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.LoginRateLimitPerSec = 0.01
	a := newTestAPI(t, cfg, nil)

	body := gin.H{"email": "admin@example.com", "password": "nope"}
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(http.MethodPost, "/api/auth/login", "", body).Code)

	// Other routes keep their own budget.
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/devices", a.admin, nil).Code)
}
