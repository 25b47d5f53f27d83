// Copyright 2025 Gavel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package policy implements the quorum and threshold rules. Participation
// and proposer minimums are pure functions of proposal class and total
// weight; the proposer threshold is the one knob a privileged actor can
// adjust at runtime, within fixed bounds and with an audit trail.
package policy

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/gavelhq/gavel/core"
	"github.com/gavelhq/gavel/database"
	"github.com/gavelhq/gavel/database/models"
	"github.com/gavelhq/gavel/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// BpsDenominator converts basis points to a fraction
	BpsDenominator = 10000

	// DefaultQuorumBps is the participation minimum for STANDARD,
	// EMERGENCY, and CONSTITUTIONAL proposals (10%)
	DefaultQuorumBps = 1000

	// UpgradeQuorumBps is the fixed participation minimum for UPGRADE
	// proposals (15%). It is not configurable.
	UpgradeQuorumBps = 1500

	// DefaultProposerThresholdBps is the starting proposer threshold (3%)
	DefaultProposerThresholdBps = 300

	// MinProposerThresholdBps and MaxProposerThresholdBps bound runtime
	// threshold adjustments (1% and 10%)
	MinProposerThresholdBps = 100
	MaxProposerThresholdBps = 1000
)

// Default voting and queueing windows in heights, assuming a 12 second
// height interval
const (
	DefaultStandardVotingPeriod       = 7200
	DefaultEmergencyVotingPeriod      = 300
	DefaultConstitutionalVotingPeriod = 14400
	DefaultUpgradeVotingPeriod        = 7200
	DefaultStandardQueueDelay         = 7200
	DefaultEmergencyQueueDelay        = 50
	DefaultConstitutionalQueueDelay   = 14400
)

// ErrNotPrivileged is returned when a caller without the privileged role
// attempts a privileged operation
var ErrNotPrivileged = core.NewPolicyViolation(
	"caller is not a privileged actor",
)

// ErrThresholdOutOfBounds is returned when a proposer threshold adjustment
// falls outside the allowed range
var ErrThresholdOutOfBounds = core.NewPolicyViolation(
	"proposer threshold outside allowed bounds",
)

type PolicyConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Roles        core.RoleRegistry
	// QuorumBps overrides the base participation minimum. UPGRADE quorum
	// is fixed and unaffected.
	QuorumBps uint64
	// ProposerThresholdBps sets the threshold used until a persisted
	// adjustment is loaded
	ProposerThresholdBps       uint64
	StandardVotingPeriod       uint64
	EmergencyVotingPeriod      uint64
	ConstitutionalVotingPeriod uint64
	UpgradeVotingPeriod        uint64
	StandardQueueDelay         uint64
	EmergencyQueueDelay        uint64
	ConstitutionalQueueDelay   uint64
}

// Policy answers quorum, threshold, and window questions for every
// proposal class
type Policy struct {
	config  PolicyConfig
	metrics struct {
		thresholdBps     prometheus.Gauge
		thresholdChanges prometheus.Counter
	}
	logger       *slog.Logger
	db           *database.Database
	eventBus     *event.EventBus
	thresholdMu  sync.RWMutex
	thresholdBps uint64
}

func NewPolicy(config PolicyConfig) *Policy {
	if config.QuorumBps == 0 {
		config.QuorumBps = DefaultQuorumBps
	}
	if config.ProposerThresholdBps == 0 {
		config.ProposerThresholdBps = DefaultProposerThresholdBps
	}
	if config.StandardVotingPeriod == 0 {
		config.StandardVotingPeriod = DefaultStandardVotingPeriod
	}
	if config.EmergencyVotingPeriod == 0 {
		config.EmergencyVotingPeriod = DefaultEmergencyVotingPeriod
	}
	if config.ConstitutionalVotingPeriod == 0 {
		config.ConstitutionalVotingPeriod = DefaultConstitutionalVotingPeriod
	}
	if config.UpgradeVotingPeriod == 0 {
		config.UpgradeVotingPeriod = DefaultUpgradeVotingPeriod
	}
	if config.StandardQueueDelay == 0 {
		config.StandardQueueDelay = DefaultStandardQueueDelay
	}
	if config.EmergencyQueueDelay == 0 {
		config.EmergencyQueueDelay = DefaultEmergencyQueueDelay
	}
	if config.ConstitutionalQueueDelay == 0 {
		config.ConstitutionalQueueDelay = DefaultConstitutionalQueueDelay
	}
	p := &Policy{
		config:       config,
		db:           config.Database,
		eventBus:     config.EventBus,
		thresholdBps: config.ProposerThresholdBps,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		p.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		p.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	p.metrics.thresholdBps = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "policy_proposer_threshold_bps",
		Help: "current proposer threshold in basis points",
	})
	p.metrics.thresholdChanges = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "policy_threshold_changes_total",
			Help: "total privileged proposer threshold adjustments",
		},
	)
	p.metrics.thresholdBps.Set(float64(p.thresholdBps))
	return p
}

// Load restores the persisted proposer threshold. A missing row keeps the
// configured starting value.
func (p *Policy) Load() error {
	param, err := p.db.GetGovernanceParam(
		models.ParamProposerThresholdBps,
		nil,
	)
	if err != nil {
		if errors.Is(err, models.ErrGovernanceParamNotFound) {
			return nil
		}
		return err
	}
	p.thresholdMu.Lock()
	p.thresholdBps = param.Value
	p.thresholdMu.Unlock()
	p.metrics.thresholdBps.Set(float64(param.Value))
	return nil
}

// MinParticipation returns the minimum aggregate participating weight
// (for + abstain) a proposal needs before it can succeed
func (p *Policy) MinParticipation(
	class ProposalClass,
	totalAtSnapshot *big.Int,
) *big.Int {
	if class == ClassUpgrade {
		return bpsShare(totalAtSnapshot, UpgradeQuorumBps)
	}
	return bpsShare(totalAtSnapshot, p.config.QuorumBps)
}

// MinProposerWeight returns the weight a proposer must currently hold to
// submit. Privileged actors submit UPGRADE proposals without a threshold.
func (p *Policy) MinProposerWeight(
	class ProposalClass,
	total *big.Int,
	privileged bool,
) *big.Int {
	if class == ClassUpgrade && privileged {
		return new(big.Int)
	}
	return bpsShare(total, p.ProposerThresholdBps())
}

// ProposerThresholdBps returns the current proposer threshold
func (p *Policy) ProposerThresholdBps() uint64 {
	p.thresholdMu.RLock()
	defer p.thresholdMu.RUnlock()
	return p.thresholdBps
}

// SetProposerThresholdBps adjusts the proposer threshold. Only privileged
// actors may adjust it, only within the fixed bounds, and every change is
// persisted and audited.
func (p *Policy) SetProposerThresholdBps(
	caller core.Address,
	bps uint64,
) error {
	if p.config.Roles == nil || !p.config.Roles.IsPrivilegedActor(caller) {
		return ErrNotPrivileged
	}
	if bps < MinProposerThresholdBps || bps > MaxProposerThresholdBps {
		return ErrThresholdOutOfBounds
	}
	tip, err := p.db.GetTip(nil)
	if err != nil {
		return err
	}
	p.thresholdMu.Lock()
	defer p.thresholdMu.Unlock()
	oldBps := p.thresholdBps
	if err := p.db.SetGovernanceParam(models.GovernanceParam{
		Name:          models.ParamProposerThresholdBps,
		Value:         bps,
		UpdatedBy:     caller.Bytes(),
		UpdatedHeight: tip.Height,
	}, nil); err != nil {
		return err
	}
	p.thresholdBps = bps
	p.metrics.thresholdBps.Set(float64(bps))
	p.metrics.thresholdChanges.Inc()
	p.logger.Info(
		"proposer threshold changed",
		"component", "policy",
		"old_bps", oldBps,
		"new_bps", bps,
		"changed_by", caller.String(),
	)
	if p.eventBus != nil {
		p.eventBus.Publish(
			event.ProposerThresholdChangedEventType,
			event.NewEvent(
				event.ProposerThresholdChangedEventType,
				event.ProposerThresholdChangedEvent{
					OldThresholdBps: oldBps,
					NewThresholdBps: bps,
					ChangedBy:       caller.Bytes(),
					ChangedHeight:   tip.Height,
				},
			),
		)
	}
	return nil
}

// VotingPeriod returns the voting window length in heights for a class
func (p *Policy) VotingPeriod(class ProposalClass) uint64 {
	switch class {
	case ClassEmergency:
		return p.config.EmergencyVotingPeriod
	case ClassConstitutional:
		return p.config.ConstitutionalVotingPeriod
	case ClassUpgrade:
		return p.config.UpgradeVotingPeriod
	default:
		return p.config.StandardVotingPeriod
	}
}

// QueueDelay returns the timelock delay in heights for a class. UPGRADE
// proposals queue into the upgrade sub-ledger, which applies its own
// delay.
func (p *Policy) QueueDelay(class ProposalClass) uint64 {
	switch class {
	case ClassEmergency:
		return p.config.EmergencyQueueDelay
	case ClassConstitutional:
		return p.config.ConstitutionalQueueDelay
	default:
		return p.config.StandardQueueDelay
	}
}

// bpsShare returns floor(total * bps / 10000)
func bpsShare(total *big.Int, bps uint64) *big.Int {
	if total == nil || total.Sign() <= 0 {
		return new(big.Int)
	}
	share := new(big.Int).Mul(total, new(big.Int).SetUint64(bps))
	return share.Div(share, big.NewInt(BpsDenominator))
}
