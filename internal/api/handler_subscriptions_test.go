package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slope-monitor-backend/internal/model"
)

func setupSubscriptionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(nil, nil, nil, Options{})
	r.PUT("/api/subscriptions", handler.PutSubscription)
	return r
}

func TestPutSubscription_InvalidRequest(t *testing.T) {
	router := setupSubscriptionRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	a := newTestAPI(t, testServerConfig(), nil)
	endpoint := "https://push.example.com/send/abc"
	get := "/api/subscriptions?endpoint=" + endpoint

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/subscriptions", a.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, get, a.admin, nil).Code)

	w := a.do(http.MethodPut, "/api/subscriptions", a.admin, gin.H{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret",
		"subscribed_devices": []string{"D1", "D2", "D1", " "},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"subscribed_devices":["D1","D2"]}`, a.do(http.MethodGet, get, a.admin, nil).Body.String())

	// Replacing narrows the device list and updates the keys.
	w = a.do(http.MethodPut, "/api/subscriptions", a.admin, gin.H{
		"endpoint": endpoint, "p256dh": "key2", "auth": "secret2",
		"subscribed_devices": []string{"D2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"subscribed_devices":["D2"]}`, a.do(http.MethodGet, get, a.admin, nil).Body.String())

	var sub model.PushSubscription
	require.NoError(t, a.db.First(&sub, "endpoint = ?", endpoint).Error)
	assert.Equal(t, "key2", sub.P256DH)

	// An empty list means every device.
	w = a.do(http.MethodPut, "/api/subscriptions", a.admin, gin.H{"endpoint": endpoint, "p256dh": "key2", "auth": "secret2"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"subscribed_devices":[]}`, a.do(http.MethodGet, get, a.admin, nil).Body.String())

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/subscriptions", a.admin, gin.H{"endpoint": endpoint}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, get, a.admin, nil).Code)
}

func TestRawQueryParam(t *testing.T) {
	raw := "a=1&endpoint=" + url.QueryEscape("https://x/y") + "&b=2"
	v, ok := rawQueryParam(raw, "endpoint")
	assert.True(t, ok)
	assert.Equal(t, "https%3A%2F%2Fx%2Fy", v)

	_, ok = rawQueryParam("a=1", "endpoint")
	assert.False(t, ok)
}
