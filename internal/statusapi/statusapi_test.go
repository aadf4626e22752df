package statusapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/cvd"
	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/ledger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/position"
	"github.com/kaviarasu301/imperium-exec-core/internal/risk"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

func buildServer(t *testing.T, jwtSecret []byte) *Server {
	t.Helper()
	dir := t.TempDir()

	j := journal.New(dir + "/journal.jsonl")
	dash := telemetry.New("paper", dir+"/telemetry.json")
	tca := telemetry.NewTCAReporter(dir+"/journal.jsonl", dir+"/tca.json")

	posMgr := position.NewManager(model.ModePaper, j, dash, nil)
	ledgerStore, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgerStore.Close() })

	riskCtl := risk.NewController(model.RiskLimits{}, j, ledgerStore, nil, nil)
	automation := cvd.New(model.ModePaper, dir, j, nil, nil, nil, nil, nil, nil, nil)

	return New(posMgr, riskCtl, ledgerStore, dash, tca, automation, jwtSecret)
}

func TestPositionsRouteNoAuthRequired(t *testing.T) {
	s := buildServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestKillSwitchRouteRejectsMissingToken(t *testing.T) {
	s := buildServer(t, []byte("secret"))

	req := httptest.NewRequest(http.MethodGet, "/risk/kill-switch", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKillSwitchRouteAcceptsValidToken(t *testing.T) {
	secret := []byte("secret")
	s := buildServer(t, secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/risk/kill-switch", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestAutomationTradeRouteNotFound(t *testing.T) {
	s := buildServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/automation/256265", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}
