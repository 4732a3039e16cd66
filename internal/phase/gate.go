// Package phase implements the phase-gated withdraw lock and the single
// source of truth for the current EpochPhase. Every withdrawal path, and
// every ingress/finality operation that cares about phase, consults this
// Gate rather than tracking phase itself.
package phase

import (
	"errors"
	"sync"

	"github.com/openibank/openmatch/internal/types"
)

// ErrWrongEpochPhase is returned by CheckWithdraw (and any other
// phase-sensitive call) when the current phase doesn't permit the
// requested operation.
var ErrWrongEpochPhase = errors.New("phase: operation not permitted in current epoch phase")

// Gate holds the current (epoch, phase) pair. It is a logical singleton
// serialized behind a mutex, matching the single-writer discipline used
// throughout the core.
type Gate struct {
	mu    sync.RWMutex
	epoch uint64
	phase types.EpochPhase
}

// New creates a Gate starting at epoch 0 in PhaseCollect.
func New() *Gate {
	return &Gate{epoch: 0, phase: types.PhaseCollect}
}

// Current returns the current epoch and phase.
func (g *Gate) Current() (uint64, types.EpochPhase) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.epoch, g.phase
}

// Advance moves to the next phase in the pipeline, incrementing the epoch
// counter when FINALIZE wraps back to COLLECT. Only the epoch controller
// calls this.
func (g *Gate) Advance() (uint64, types.EpochPhase) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := types.EpochPhaseNext(g.phase)
	if g.phase == types.PhaseFinalize {
		g.epoch++
	}
	g.phase = next
	return g.epoch, g.phase
}

// CheckWithdraw returns ErrWrongEpochPhase unless the current phase is
// allow-listed for withdrawals (today: only PhaseCollect).
func (g *Gate) CheckWithdraw() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !types.WithdrawAllowedPhases[g.phase] {
		return ErrWrongEpochPhase
	}
	return nil
}

// RequirePhase returns ErrWrongEpochPhase unless the current phase is
// exactly want. core.Core uses it for submission, cancellation and
// sealing (must be Collect), for MatchEpoch (must be Seal) and for
// FinalizeEpoch (must be Match), each checked before advancing.
func (g *Gate) RequirePhase(want types.EpochPhase) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.phase != want {
		return ErrWrongEpochPhase
	}
	return nil
}
