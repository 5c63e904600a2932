package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/jurysane-api/models"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestNewReadsOverrides(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("SESSION_RETENTION", "2h")
	t.Setenv("LLM_TEMPERATURE", "0.25")
	t.Setenv("AGENT_RATE_LIMIT", "nope")

	conf := New()

	assert.Equal(t, []string{"http://a.example", "http://b.example"}, conf.CORSOrigins)
	assert.Equal(t, 2*time.Hour, conf.SessionRetention)
	assert.Equal(t, 0.25, conf.LLM.Temperature)
	assert.Equal(t, 2, conf.AgentRateLimit)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error it borked", body.Response.Message)
	assert.Equal(t, "bad request", body.Response.Error)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
}

func TestSetLoggerRejectsBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := setLogger("production")
	assert.Error(t, err)
}
