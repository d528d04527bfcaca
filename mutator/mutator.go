// Package mutator implements the DNA Mutator: it turns a mutation proposal
// (or the initial-birth case) into a new, atomically-swapped DnaSnapshot
// plus the learning event that records why the change happened.
package mutator

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/idgen"
	"github.com/wrenfield/greenlight/store"
)

// Risk levels a mutation proposal can carry.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// ErrNoActiveDna is returned when a target has no active DNA snapshot to
// mutate from.
var ErrNoActiveDna = errors.New("mutator: no active dna")

// Proposal is a request to change one gene of a target's active DNA.
type Proposal struct {
	Gene       string
	Patch      map[string]any
	Reason     string
	Confidence float64
	RiskLevel  string
}

// Result is what a successful mutation produced.
type Result struct {
	SnapshotID string
	Version    string
	Diff       dna.Diff
}

// Mutator applies proposals against the Store, using gen to mint new row
// IDs (ecosystem default is idgen.Default, prefixed by callers as needed).
type Mutator struct {
	store *store.Store
	gen   idgen.Generator
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithIDGenerator overrides the default ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(m *Mutator) { m.gen = gen }
}

// New builds a Mutator backed by s.
func New(s *store.Store, opts ...Option) *Mutator {
	m := &Mutator{store: s, gen: idgen.Prefixed("dna_", idgen.Default)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// trustImpactForRisk maps a proposal's riskLevel to the trustImpact
// recorded on the resulting mutation LearningEvent.
func trustImpactForRisk(risk string) int {
	switch risk {
	case RiskHigh:
		return -5
	case RiskLow:
		return 5
	default:
		return 0
	}
}

// Mutate applies proposal to targetId's active DNA: deep-clones it, shallow
// -merges the named gene with the patch, bumps the patch version component,
// atomically swaps in the new snapshot, and appends a mutation LearningEvent.
func (m *Mutator) Mutate(ctx context.Context, targetID string, proposal Proposal) (*Result, error) {
	active, err := m.store.GetActiveDna(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("mutator: get active dna: %w", err)
	}
	if active == nil {
		return nil, ErrNoActiveDna
	}

	current, err := dna.Unmarshal([]byte(active.DnaJSON))
	if err != nil {
		return nil, fmt.Errorf("mutator: decode active dna: %w", err)
	}

	mutated, diff, err := dna.ApplyGenePatch(current, proposal.Gene, proposal.Patch)
	if err != nil {
		return nil, fmt.Errorf("mutator: apply gene patch: %w", err)
	}

	version, err := dna.ParseVersion(active.Version)
	if err != nil {
		return nil, fmt.Errorf("mutator: parse version: %w", err)
	}
	nextVersion := version.NextPatch()

	mutatedJSON, err := dna.Marshal(mutated)
	if err != nil {
		return nil, fmt.Errorf("mutator: marshal mutated dna: %w", err)
	}

	snapID := m.gen()
	snap := &store.DnaSnapshot{
		ID:       snapID,
		TargetID: targetID,
		Version:  nextVersion.String(),
		DnaJSON:  string(mutatedJSON),
		ParentID: active.ID,
		IsActive: true,
	}
	if err := m.store.CreateDnaSnapshot(ctx, snap, true); err != nil {
		return nil, fmt.Errorf("mutator: create dna snapshot: %w", err)
	}

	event := &store.LearningEvent{
		ID:           idgen.Prefixed("evt_", idgen.Default)(),
		TargetID:     targetID,
		DnaVersionID: snapID,
		EventType:    store.EventMutation,
		Title:        fmt.Sprintf("mutated gene %s", proposal.Gene),
		Description:  proposal.Reason,
		DnaChanges:   diffToJSON(diff),
		TrustImpact:  trustImpactForRisk(proposal.RiskLevel),
	}
	if err := m.store.AppendLearningEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("mutator: append learning event: %w", err)
	}

	return &Result{SnapshotID: snapID, Version: nextVersion.String(), Diff: diff}, nil
}

// CreateInitial creates the birth DNA snapshot (version 1.0.0, no parent,
// active) for a brand-new target, and appends a birth learning event.
func (m *Mutator) CreateInitial(ctx context.Context, targetID string) (*Result, error) {
	profile := dna.DefaultProfile()
	profileJSON, err := dna.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("mutator: marshal default profile: %w", err)
	}

	snapID := m.gen()
	snap := &store.DnaSnapshot{
		ID:       snapID,
		TargetID: targetID,
		Version:  dna.InitialVersion,
		DnaJSON:  string(profileJSON),
		IsActive: true,
	}
	if err := m.store.CreateDnaSnapshot(ctx, snap, false); err != nil {
		return nil, fmt.Errorf("mutator: create initial dna snapshot: %w", err)
	}

	event := &store.LearningEvent{
		ID:           idgen.Prefixed("evt_", idgen.Default)(),
		TargetID:     targetID,
		DnaVersionID: snapID,
		EventType:    store.EventBirth,
		Title:        "initial dna profile",
	}
	if err := m.store.AppendLearningEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("mutator: append birth event: %w", err)
	}

	return &Result{SnapshotID: snapID, Version: dna.InitialVersion}, nil
}
