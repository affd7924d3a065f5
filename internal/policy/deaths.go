// Package policy applies the death/kill consequences: wanted penalties,
// clan-safety exemption, illegal-kill flagging in PVP-disabled regions, and
// bounty settlement. Each step is independently fault-isolated so one
// failing collaborator cannot block the rest of the pipeline.
package policy

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"outlands.gg/internal/guard"
	"outlands.gg/internal/trust"
)

// PermPVP is the ownership-source permission flag consulted for illegal-kill
// detection.
const PermPVP = "pvp"

// ReasonPlayerKill tags wanted flags raised for kills in protected regions.
const ReasonPlayerKill = "player-kill"

// systemBountyFloor is the minimum system bounty placed on an illegal
// killer, regardless of configuration.
const systemBountyFloor = 50

// Ownership is the region-ownership source of truth. PermissionFlag reports
// (value, present); an absent flag is unset, which for PVP means allowed.
type Ownership interface {
	OwnerOf(region trust.RegionKey) (uuid.UUID, bool)
	PermissionFlag(region trust.RegionKey, perm string) (value, present bool)
}

// Balances is the economy ledger's debit contract.
type Balances interface {
	Debit(principal uuid.UUID, amount int64, reason, note string) error
}

// Wanted is the reputation registry's flag contract.
type Wanted interface {
	IsWanted(principal uuid.UUID) bool
	AddWanted(principal uuid.UUID, reason string, magnitude int) error
}

// Bounties is the bounty registry's payout contract.
type Bounties interface {
	PlaceSystemBounty(target uuid.UUID, amount int64, note string) error
	Claim(victim, killer uuid.UUID) error
}

// Groups is the clan-membership registry.
type Groups interface {
	ClanOf(principal uuid.UUID) (string, bool)
}

// Config is the policy knob snapshot captured once per event.
type Config struct {
	DeathCost            int64
	PreventClanMateKills bool
	ClaimsEnabled        bool
	MinBounty            int64
}

// DeathEvent is one death notification. Killer is uuid.Nil when the damage
// source was not another player.
type DeathEvent struct {
	Victim  uuid.UUID
	Killer  uuid.UUID
	X, Y, Z int32
	Region  trust.RegionKey
}

// AuditEntry records one pipeline outcome for the audit log and index.
type AuditEntry struct {
	Time   time.Time      `json:"time"`
	Step   string         `json:"step"`
	Victim string         `json:"victim"`
	Killer string         `json:"killer,omitempty"`
	Region string         `json:"region"`
	Detail map[string]any `json:"detail,omitempty"`
}

// AuditSink receives pipeline outcomes. Sinks must not block the caller for
// long; the pipeline runs on the event dispatch path.
type AuditSink interface {
	RecordPolicy(AuditEntry)
}

// Pipeline fans a death event out to the economy and reputation
// collaborators. Nil collaborators disable their steps.
type Pipeline struct {
	logger   *log.Logger
	cfg      func() Config
	owners   Ownership
	balances Balances
	wanted   Wanted
	bounties Bounties
	groups   Groups
	audit    AuditSink
}

type Deps struct {
	Logger   *log.Logger
	Config   func() Config
	Owners   Ownership
	Balances Balances
	Wanted   Wanted
	Bounties Bounties
	Groups   Groups
	Audit    AuditSink
}

func NewPipeline(d Deps) *Pipeline {
	cfg := d.Config
	if cfg == nil {
		cfg = func() Config { return Config{} }
	}
	return &Pipeline{
		logger:   d.Logger,
		cfg:      cfg,
		owners:   d.Owners,
		balances: d.Balances,
		wanted:   d.Wanted,
		bounties: d.Bounties,
		groups:   d.Groups,
		audit:    d.Audit,
	}
}

// HandleDeath runs the five policy steps in fixed order. A failure inside
// one step is logged and does not block the next.
func (p *Pipeline) HandleDeath(ev DeathEvent) {
	if ev.Victim == uuid.Nil {
		return
	}
	cfg := p.cfg()

	p.wantedPenalty(ev, cfg)

	// Kill attribution: everything past here needs a distinct player killer.
	if ev.Killer == uuid.Nil || ev.Killer == ev.Victim {
		return
	}

	exempt := guard.RunValue(p.logger, "policy.clan_exemption", false, func() (bool, error) {
		return p.clanExempt(ev, cfg), nil
	})
	if !exempt {
		guard.Run(p.logger, "policy.illegal_kill", func() error {
			return p.illegalKill(ev, cfg)
		})
	}

	// Settlement runs last and independently of the illegal-kill branch: the
	// victim may carry a bounty from an unrelated cause.
	guard.Run(p.logger, "policy.bounty_settlement", func() error {
		return p.settleBounty(ev)
	})
}

func (p *Pipeline) wantedPenalty(ev DeathEvent, cfg Config) {
	guard.Run(p.logger, "policy.wanted_penalty", func() error {
		if p.wanted == nil || p.balances == nil || cfg.DeathCost <= 0 {
			return nil
		}
		if !p.wanted.IsWanted(ev.Victim) {
			return nil
		}
		err := p.balances.Debit(ev.Victim, cfg.DeathCost, "wanted_death",
			fmt.Sprintf("death penalty in region %s", ev.Region))
		if err != nil {
			return fmt.Errorf("debit %s: %w", ev.Victim, err)
		}
		p.record(ev, "wanted_penalty", map[string]any{"amount": cfg.DeathCost})
		return nil
	})
}

func (p *Pipeline) clanExempt(ev DeathEvent, cfg Config) bool {
	if !cfg.PreventClanMateKills || p.groups == nil {
		return false
	}
	victimClan, ok := p.groups.ClanOf(ev.Victim)
	if !ok {
		return false
	}
	killerClan, ok := p.groups.ClanOf(ev.Killer)
	if !ok || killerClan != victimClan {
		return false
	}
	p.record(ev, "clan_exemption", map[string]any{"clan": victimClan})
	return true
}

func (p *Pipeline) illegalKill(ev DeathEvent, cfg Config) error {
	if !cfg.ClaimsEnabled || p.owners == nil || p.wanted == nil || p.bounties == nil {
		return nil
	}
	// Only an explicit PVP=false marks the region protected; an absent flag
	// leaves PVP allowed.
	allowed, present := p.owners.PermissionFlag(ev.Region, PermPVP)
	if !present || allowed {
		return nil
	}
	if err := p.wanted.AddWanted(ev.Killer, ReasonPlayerKill, 1); err != nil {
		return fmt.Errorf("flag killer %s: %w", ev.Killer, err)
	}
	amount := cfg.MinBounty
	if amount < systemBountyFloor {
		amount = systemBountyFloor
	}
	if err := p.bounties.PlaceSystemBounty(ev.Killer, amount,
		fmt.Sprintf("illegal kill of %s in %s", ev.Victim, ev.Region)); err != nil {
		return fmt.Errorf("place bounty on %s: %w", ev.Killer, err)
	}
	p.record(ev, "illegal_kill", map[string]any{"bounty": amount})
	return nil
}

func (p *Pipeline) settleBounty(ev DeathEvent) error {
	if p.bounties == nil {
		return nil
	}
	if err := p.bounties.Claim(ev.Victim, ev.Killer); err != nil {
		return fmt.Errorf("claim bounty on %s: %w", ev.Victim, err)
	}
	p.record(ev, "bounty_settlement", nil)
	return nil
}

func (p *Pipeline) record(ev DeathEvent, step string, detail map[string]any) {
	if p.audit == nil {
		return
	}
	entry := AuditEntry{
		Time:   time.Now().UTC(),
		Step:   step,
		Victim: ev.Victim.String(),
		Region: ev.Region.String(),
		Detail: detail,
	}
	if ev.Killer != uuid.Nil {
		entry.Killer = ev.Killer.String()
	}
	p.audit.RecordPolicy(entry)
}
