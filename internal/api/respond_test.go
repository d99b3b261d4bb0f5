package api

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSONLogsEncodeFailureThroughHandlerLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	h := &handler{log: logger}

	req := httptest.NewRequest(http.MethodGet, "/donations/stats/monthly", nil)
	rec := httptest.NewRecorder()
	h.respondJSON(rec, req, http.StatusOK, map[string]float64{"total": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "encode JSON response", entry.Message)
	assert.Equal(t, "/donations/stats/monthly", entry.Data["path"])
	assert.Error(t, entry.Data[logrus.ErrorKey].(error))
}

func TestIDParamRejectsNonPositive(t *testing.T) {
	ts := newTestServer()

	for _, path := range []string{"/orders/0", "/orders/abc", "/donations/-4"} {
		rec, body := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, body["error"], "Invalid", path)
	}
}
