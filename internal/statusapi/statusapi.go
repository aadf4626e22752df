// Package statusapi exposes a read-only ops status surface over HTTP: open
// positions, pending orders, recent incidents, the TCA report, and trade
// ledger day summaries. It is ambient ops tooling, grounded on the
// reference tree's api/tactics.go gin wiring and its
// c.GetString("user_id") bearer-token auth pattern, not the excluded GUI.
package statusapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaviarasu301/imperium-exec-core/internal/cvd"
	"github.com/kaviarasu301/imperium-exec-core/internal/ledger"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/position"
	"github.com/kaviarasu301/imperium-exec-core/internal/risk"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

var log = logger.With("statusapi")

// Server is the ops status HTTP surface for one running core instance.
type Server struct {
	engine *gin.Engine

	positions *position.Manager
	risk      *risk.Controller
	ledger    *ledger.Store
	dashboard *telemetry.Dashboard
	tca       *telemetry.TCAReporter
	automation *cvd.Coordinator

	jwtSecret []byte
}

// New builds a Server. jwtSecret authenticates bearer tokens on every
// route; a nil/empty secret disables auth, for local development.
func New(positions *position.Manager, riskCtl *risk.Controller, ledgerStore *ledger.Store, dash *telemetry.Dashboard, tca *telemetry.TCAReporter, automation *cvd.Coordinator, jwtSecret []byte) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:     gin.New(),
		positions:  positions,
		risk:       riskCtl,
		ledger:     ledgerStore,
		dashboard:  dash,
		tca:        tca,
		automation: automation,
		jwtSecret:  jwtSecret,
	}
	s.routes()
	return s
}

// Engine exposes the underlying gin engine, e.g. for tests or a custom
// http.Server wrapper.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery())

	authed := s.engine.Group("/", s.authMiddleware)
	authed.GET("/positions", s.handlePositions)
	authed.GET("/pending-orders", s.handlePendingOrders)
	authed.GET("/risk/kill-switch", s.handleKillSwitch)
	authed.GET("/tca", s.handleTCA)
	authed.GET("/ledger/day-summary", s.handleDaySummary)
	authed.GET("/ledger/recent", s.handleRecentTrades)
	authed.GET("/automation/:token", s.handleAutomationTrade)
	authed.GET("/metrics", gin.WrapH(promhttp.HandlerFor(telemetry.Registry, promhttp.HandlerOpts{})))
}

// authMiddleware validates a bearer JWT the same way api/tactics.go reads
// an authenticated user id from the gin context: on success it stashes the
// subject claim as "user_id" for handlers that want it.
func (s *Server) authMiddleware(c *gin.Context) {
	if len(s.jwtSecret) == 0 {
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" || tokenStr == header {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		c.Abort()
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	if sub, ok := claims["sub"].(string); ok {
		c.Set("user_id", sub)
	}
	c.Next()
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.positions.Positions()})
}

func (s *Server) handlePendingOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending_orders": s.positions.PendingOrders()})
}

func (s *Server) handleKillSwitch(c *gin.Context) {
	active, reason := s.risk.KillSwitchActive()
	c.JSON(http.StatusOK, gin.H{
		"active":            active,
		"reason":            reason,
		"intraday_peak_pnl": s.risk.IntradayPeakPnL(),
	})
}

func (s *Server) handleTCA(c *gin.Context) {
	report, err := s.tca.Generate()
	if err != nil {
		log.ErrorErr(err, "tca report generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleDaySummary(c *gin.Context) {
	sessionDate := c.Query("session_date")
	if sessionDate == "" {
		sessionDate = time.Now().Format("2006-01-02")
	}
	summary, err := s.ledger.GetDaySummary(sessionDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRecentTrades(c *gin.Context) {
	n := 20
	rows, err := s.ledger.GetLastNTrades(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": rows})
}

func (s *Server) handleAutomationTrade(c *gin.Context) {
	token, err := strconv.ParseInt(c.Param("token"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed instrument token"})
		return
	}
	trade, ok := s.automation.Trade(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active automation for token"})
		return
	}
	c.JSON(http.StatusOK, trade)
}
