package factory

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/display"
	"github.com/mselser95/vault-factory/internal/estimate"
	"github.com/mselser95/vault-factory/internal/submission"
	"github.com/mselser95/vault-factory/pkg/types"
)

// DisplayView is the JSON form of the display state.
type DisplayView struct {
	Loading      bool           `json:"loading"`
	Name         string         `json:"name,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	VaultName    string         `json:"vault_name,omitempty"`
	VaultSymbol  string         `json:"vault_symbol,omitempty"`
	PoolAddress  common.Address `json:"pool_address"`
	GaugeAddress common.Address `json:"gauge_address"`
	Error        string         `json:"error,omitempty"`
}

// Snapshot is a consistent read of every value the driver owns.
type Snapshot struct {
	Candidates     int                 `json:"candidates"`
	Options        []types.GaugeOption `json:"options"`
	EligibleError  string              `json:"eligible_error,omitempty"`
	Selected       types.GaugeOption   `json:"selected"`
	Session        Session             `json:"session"`
	Display        DisplayView         `json:"display"`
	Estimate       estimate.Result     `json:"estimate"`
	Submission     submission.Status   `json:"submission"`
	FundsBlocked   bool                `json:"funds_blocked"`
	CanSubmit      bool                `json:"can_submit"`
	CanSubmitError string              `json:"can_submit_error,omitempty"`
}

// Snapshot returns the current driver state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.RLock()
	snap := Snapshot{
		Candidates: len(d.candidates),
		Options:    optionsOf(d.eligible),
		Session:    d.session,
	}
	if d.eligibleErr != nil {
		snap.EligibleError = d.eligibleErr.Error()
	}
	selected := d.selected
	d.mu.RUnlock()

	hasSigner := d.submissions != nil

	if !selected.IsZero() {
		snap.Selected = selected.Option()
	}

	state := d.display.State()
	if state.Gauge != selected.GaugeAddress {
		// Resolution for the current selection has not started yet.
		state = display.State{Gauge: selected.GaugeAddress, Loading: !selected.IsZero()}
	}
	snap.Display = DisplayView{Loading: state.Loading, GaugeAddress: state.Gauge}
	if state.Metadata != nil {
		snap.Display.Name = state.Metadata.Name
		snap.Display.Symbol = state.Metadata.Symbol
		snap.Display.VaultName = state.Metadata.VaultName()
		snap.Display.VaultSymbol = state.Metadata.VaultSymbol()
		snap.Display.PoolAddress = state.Metadata.PoolAddress
	}
	if state.Err != nil {
		snap.Display.Error = state.Err.Error()
	}

	snap.Estimate = d.estimator.Current()
	caller := snap.Session.caller()
	if !snap.Estimate.Matches(selected.GaugeAddress, caller) {
		snap.Estimate = estimate.Result{
			Gauge:   selected.GaugeAddress,
			Caller:  caller,
			Loading: !selected.IsZero() && caller != (common.Address{}),
		}
	}
	if d.submissions != nil {
		snap.Submission = d.submissions.Status()
	} else {
		snap.Submission = submission.Status{State: types.SubmissionIdle}
	}

	snap.FundsBlocked = d.fundsBlocked()
	snap.CanSubmit, snap.CanSubmitError = canSubmit(&snap, selected, hasSigner)
	return snap
}

// canSubmit mirrors the submission guard so callers can disable the action.
func canSubmit(snap *Snapshot, selected types.Gauge, hasSigner bool) (bool, string) {
	switch {
	case !hasSigner || !snap.Session.Active || snap.Session.Account == (common.Address{}):
		return false, types.ErrNotAuthenticated.Error()
	case selected.IsZero():
		return false, types.ErrZeroGauge.Error()
	case snap.Estimate.Blocked:
		return false, types.ErrEstimateBlocked.Error()
	case snap.Submission.State == types.SubmissionPending || snap.Submission.Draining:
		return false, types.ErrSubmissionInFlight.Error()
	case snap.FundsBlocked:
		return false, types.ErrInsufficientFunds.Error()
	default:
		return true, ""
	}
}
