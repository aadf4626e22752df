// Package risk implements the Risk Controller (RMS): the live pre-trade
// gate and drawdown/kill-switch monitor, plus the Paper RMS margin model
// ported from original_source/utils/paper_rms.py.
package risk

import (
	"fmt"
	"sync"

	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
)

var log = logger.With("risk")

const marginSafetyFactor = 1.1

// PaperRMS is a simple margin-based gatekeeper for paper trading, a
// line-for-line port of original_source's PaperRMS.
type PaperRMS struct {
	mu               sync.Mutex
	startingBalance  float64
	usedMargin       float64
}

// NewPaperRMS builds a PaperRMS with the given starting balance (defaults
// to 1,000,000 in the caller if zero is passed, matching the reference's
// constructor default).
func NewPaperRMS(startingBalance float64) *PaperRMS {
	if startingBalance <= 0 {
		startingBalance = 1_000_000.0
	}
	return &PaperRMS{startingBalance: startingBalance}
}

// RequiredMargin is the conservative margin model: premium * qty * 1.1.
func (r *PaperRMS) RequiredMargin(price float64, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("invalid price or quantity for margin calculation")
	}
	return price * float64(quantity) * marginSafetyFactor, nil
}

// CanPlaceOrder reports whether enough margin is available for an order.
func (r *PaperRMS) CanPlaceOrder(price float64, quantity int) (bool, string) {
	required, err := r.RequiredMargin(price, quantity)
	if err != nil {
		return false, err.Error()
	}

	r.mu.Lock()
	available := r.availableMarginLocked()
	r.mu.Unlock()

	if available < required {
		return false, fmt.Sprintf("insufficient margin: required=%.2f available=%.2f", required, available)
	}
	return true, ""
}

// ReserveMargin books margin for a newly opened quantity.
func (r *PaperRMS) ReserveMargin(price float64, quantity int) {
	margin, err := r.RequiredMargin(price, quantity)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.usedMargin += margin
	r.mu.Unlock()
	log.Infof("RMS reserved margin: %.2f", margin)
}

// ReleaseMargin frees margin at the same price/quantity used to reserve it.
func (r *PaperRMS) ReleaseMargin(price float64, quantity int) {
	margin, err := r.RequiredMargin(price, quantity)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.usedMargin -= margin
	if r.usedMargin < 0 {
		r.usedMargin = 0
	}
	r.mu.Unlock()
	log.Infof("RMS released margin: %.2f", margin)
}

func (r *PaperRMS) availableMarginLocked() float64 {
	return r.startingBalance - r.usedMargin
}

// AvailableMargin returns starting balance minus used margin.
func (r *PaperRMS) AvailableMargin() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableMarginLocked()
}

// UsedMargin returns margin currently reserved.
func (r *PaperRMS) UsedMargin() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usedMargin
}

// SetUsedMargin restores used margin from a persisted snapshot.
func (r *PaperRMS) SetUsedMargin(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v < 0 {
		v = 0
	}
	r.usedMargin = v
}

// Snapshot returns a point-in-time view for persistence/telemetry.
func (r *PaperRMS) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]float64{
		"used":      r.usedMargin,
		"available": r.availableMarginLocked(),
		"total":     r.startingBalance,
	}
}
