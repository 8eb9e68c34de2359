package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCountsGameplay(t *testing.T) {
	c := New()
	c.RecordArrival()
	c.RecordArrival()
	c.RecordCure(true)
	c.RecordCure(false)
	c.RecordGameOver()
	c.RecordSave(2*time.Millisecond, nil)
	c.RecordSave(4*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	gameplay := snap["gameplay"].(map[string]interface{})
	assert.EqualValues(t, 2, gameplay["arrivals"])
	assert.EqualValues(t, 2, gameplay["cures"])
	assert.EqualValues(t, 1, gameplay["perfect_couples"])

	saves := snap["saves"].(map[string]interface{})
	assert.EqualValues(t, 2, saves["written"])
	assert.EqualValues(t, 1, saves["errors"])
	assert.InDelta(t, 3.0, saves["avg_write_lat_ms"], 0.001)
	assert.InDelta(t, 4.0, saves["max_write_lat_ms"], 0.001)

	sessions := snap["sessions"].(map[string]interface{})
	assert.NotEmpty(t, sessions["last_game_over"])
}

func TestHandlersServeBothFormats(t *testing.T) {
	c := New()
	c.RecordWSConnection(1)
	c.RecordWSMessage(true)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "websocket")

	rec = httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	assert.Contains(t, rec.Body.String(), "er_ws_connections 1")
	assert.Contains(t, rec.Body.String(), `er_ws_messages_total{direction="in"} 1`)
}
