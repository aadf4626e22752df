// Command imperium-desk boots the execution and risk core as a long-lived
// process: journal, telemetry, ledger, anomaly surveillance, risk
// controller, position manager, CVD automation coordinator, the execution
// stack, and (in paper mode) the paper trading simulator — wired together
// the way the reference tree's trader package bootstraps a single
// AutoTrader instance in its own goroutine, plus the ops status HTTP
// surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/anomaly"
	"github.com/kaviarasu301/imperium-exec-core/internal/config"
	"github.com/kaviarasu301/imperium-exec-core/internal/cvd"
	"github.com/kaviarasu301/imperium-exec-core/internal/execution"
	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/ledger"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/paper"
	"github.com/kaviarasu301/imperium-exec-core/internal/position"
	"github.com/kaviarasu301/imperium-exec-core/internal/risk"
	"github.com/kaviarasu301/imperium-exec-core/internal/statusapi"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

var log = logger.With("main")

func main() {
	settings, err := config.Load()
	if err != nil {
		logger.ErrorErr(err, "failed to load configuration")
		os.Exit(1)
	}
	logger.Configure(settings.LogFormat)

	mode := "paper"
	if settings.TradingMode == "live" {
		mode = "live"
	}

	j := journal.New(settings.PathFor("execution_journal", mode, "jsonl"))
	qa := journal.New(settings.PathFor("execution_quality", mode, "jsonl"))
	dash := telemetry.New(mode, settings.PathFor("telemetry_snapshot", mode, "json"))
	tca := telemetry.NewTCAReporter(settings.PathFor("execution_journal", mode, "jsonl"), settings.PathFor("tca_report", mode, "json"))

	ledgerStore, err := ledger.Open(settings.PathFor("trades", mode, "db"))
	if err != nil {
		logger.ErrorErr(err, "failed to open trade ledger")
		os.Exit(1)
	}
	defer ledgerStore.Close()

	responder := anomaly.NewResponder()
	registerPlaybookHooks(responder)
	detector := anomaly.New(j, dash, responder)

	tradingMode := model.ModePaper
	if mode == "live" {
		tradingMode = model.ModeLive
	}

	limits := model.RiskLimits{
		IntradayDrawdownLimit: settings.RiskIntradayDrawdownLimit,
		MaxPortfolioLoss:      settings.RiskMaxPortfolioLoss,
		MaxOpenPositions:      settings.RiskMaxOpenPositions,
		MaxGrossOpenQuantity:  settings.RiskMaxGrossOpenQuantity,
	}

	posMgr := position.NewManager(tradingMode, j, dash, nil)
	stack := execution.New(mode, j, qa, dash, detector, tca)

	var placeOrder execution.PlaceOrderFunc
	if mode == "paper" {
		sim := paper.NewSimulator(settings.BaseDir, j, dash)
		placeOrder = func(args execution.OrderArgs) (string, error) {
			return sim.PlaceOrder(paper.PlaceOrderRequest{
				TradingSymbol:   args.TradingSymbol,
				TransactionType: args.TransactionType,
				Quantity:        args.Quantity,
				Product:         args.Product,
				Exchange:        model.ExchangeNFO,
				OrderType:       args.OrderType,
				Price:           args.Price,
				TriggerPrice:    args.TriggerPrice,
				GroupName:       args.GroupName,
			})
		}
		sim.StartMatchingTimer()
		defer sim.StopMatchingTimer()
	} else {
		log.Warn("live trading mode requires a broker.Client wired via internal/broker.NewLiveBroker; none configured, refusing to place live orders")
		placeOrder = func(execution.OrderArgs) (string, error) {
			return "", context.DeadlineExceeded
		}
	}

	automation := cvd.New(tradingMode, settings.BaseDir, j, nil, stack, placeOrder, posMgr, posMgr, nil, nil)
	automation.Load()

	riskCtl := risk.NewController(limits, j, ledgerStore, automation, posMgr)

	stack.StartHeartbeatTimer()
	defer stack.StopHeartbeatTimer()

	api := statusapi.New(posMgr, riskCtl, ledgerStore, dash, tca, automation, jwtSecretFromEnv())
	srv := &http.Server{Addr: ":8765", Handler: api.Engine()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorErr(err, "status api server stopped")
		}
	}()

	runDrawdownMonitor(riskCtl, posMgr)
	runTelemetrySnapshotTimer(dash)

	log.Infof("imperium-desk running in %s mode, base_dir=%s", mode, settings.BaseDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("imperium-desk shutting down")
}

// runDrawdownMonitor starts the independent periodic task that evaluates
// the RMS drawdown/kill-switch locks.
func runDrawdownMonitor(riskCtl *risk.Controller, posMgr *position.Manager) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			sessionDate := time.Now().Format("2006-01-02")
			if err := riskCtl.EvaluateRiskLocks(sessionDate, posMgr.TotalUnrealizedPnL()); err != nil {
				log.ErrorErr(err, "risk lock evaluation failed")
			}
		}
	}()
}

// runTelemetrySnapshotTimer starts the independent periodic task that
// overwrites the telemetry snapshot file on disk.
func runTelemetrySnapshotTimer(dash *telemetry.Dashboard) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := dash.Snapshot(); err != nil {
				log.ErrorErr(err, "telemetry snapshot write failed")
			}
		}
	}()
}

// registerPlaybookHooks wires the four incident-responder action aliases
// to log-only stubs; a real deployment replaces these with strategy-pause,
// risk-unwind, and data-feed-reroute hooks supplied by the out-of-scope
// strategy runner and market-data transport.
func registerPlaybookHooks(r *anomaly.Responder) {
	r.RegisterHook("pause", func(incident model.Incident) error {
		log.Warnf("playbook: pause_strategy kind=%s severity=%s", incident.Kind, incident.Severity)
		return nil
	})
	r.RegisterHook("unwind", func(incident model.Incident) error {
		log.Warnf("playbook: unwind_risk kind=%s severity=%s", incident.Kind, incident.Severity)
		return nil
	})
	r.RegisterHook("reroute", func(incident model.Incident) error {
		log.Warnf("playbook: reroute kind=%s severity=%s", incident.Kind, incident.Severity)
		return nil
	})
}

func jwtSecretFromEnv() []byte {
	if v := os.Getenv("IMPERIUM_STATUS_API_JWT_SECRET"); v != "" {
		return []byte(v)
	}
	return nil
}
