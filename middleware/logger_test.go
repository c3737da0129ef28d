package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestLoggerWith(zerolog.New(&buf)))
	router.GET("/missing", func(c *gin.Context) {
		c.Set(ContextUserID, uint(7))
		c.String(404, "nope")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing?access_token=secret", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/missing", entry["path"])
	assert.NotContains(t, buf.String(), "secret")
	assert.EqualValues(t, 404, entry["status"])
	assert.EqualValues(t, 7, entry["user_id"])
	assert.Equal(t, "request", entry["message"])
}
