package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/linkerr"
)

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	NewLinkLogger(logger, "/dev/ttyUSB0").LogConnection("open", true, nil)
	require.NoError(t, CloseLogger(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "Link connection event", entry["message"])
	assert.Equal(t, "/dev/ttyUSB0", entry["port"])
	assert.Equal(t, "link", entry["component"])
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind linkerr.Kind
		want int
	}{
		{linkerr.ConfigInvalid, http.StatusBadRequest},
		{linkerr.NameRequired, http.StatusBadRequest},
		{linkerr.PermissionDenied, http.StatusForbidden},
		{linkerr.PortUnavailable, http.StatusNotFound},
		{linkerr.AlreadyOpen, http.StatusConflict},
		{linkerr.NotOpen, http.StatusConflict},
		{linkerr.DeviceRemoved, http.StatusBadGateway},
		{linkerr.Timeout, http.StatusGatewayTimeout},
		{linkerr.Unsupported, http.StatusNotImplemented},
		{linkerr.KindUnknown, http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			assert.Equal(t, test.want, StatusForKind(test.kind))
		})
	}
}

func TestLinkErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	err := linkerr.Join([]*linkerr.Error{
		linkerr.InvalidField("baud", "must be positive"),
		linkerr.InvalidField("parity", "unknown parity %q", "X"),
	})
	LinkErrorResponse(c, "Failed to open link", err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
		Error     struct {
			Code    string `json:"code"`
			Records []struct {
				Kind  string `json:"kind"`
				Field string `json:"field"`
			} `json:"records"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "ConfigInvalid", body.Error.Code)
	require.Len(t, body.Error.Records, 2)
	assert.Equal(t, "parity", body.Error.Records[1].Field)
	assert.Equal(t, "ConfigInvalid", body.Error.Records[1].Kind)
}

func TestLinkErrorResponse_PlainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	LinkErrorResponse(c, "boom", errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Contains(t, w.Body.String(), "disk on fire")
}

func TestLoggerWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	LoggerWithRequestID(logger, "req-1").Info("scoped")
	LoggerWithRequestID(logger, "").Info("unscoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	LogError(logger, "open failed", linkerr.InvalidField("baud", "baud must be positive"), zap.String("port", "COM4"))
	LogError(logger, "plain failure", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "ConfigInvalid", fields["kind"])
	assert.Equal(t, "baud", fields["field"])
	assert.Equal(t, "COM4", fields["port"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.NotContains(t, entries[1].ContextMap(), "kind")
}

func TestLogPanic(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core, zap.WithFatalHook(zapcore.WriteThenPanic))

	assert.Panics(t, func() {
		defer LogPanic(logger, "worker")
		panic("boom")
	})

	entries := logs.FilterMessage("Goroutine panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.FatalLevel, entries[0].Level)
	assert.Equal(t, "worker", entries[0].ContextMap()["goroutine"])

	assert.NotPanics(t, func() {
		defer LogPanic(logger, "worker")
	})
}
