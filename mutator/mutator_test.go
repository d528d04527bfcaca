package mutator

import (
	"context"
	"testing"

	"github.com/wrenfield/greenlight/dbopen"
	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/store"
)

func newTestMutator(t *testing.T) (*Mutator, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := &store.Store{DB: db}
	return New(st), st
}

func TestCreateInitial(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMutator(t)

	if err := s.CreateTarget(ctx, &store.Target{ID: "t1", URL: "https://example.com"}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	res, err := m.CreateInitial(ctx, "t1")
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	if res.Version != dna.InitialVersion {
		t.Errorf("Version = %q, want %q", res.Version, dna.InitialVersion)
	}

	active, err := s.GetActiveDna(ctx, "t1")
	if err != nil {
		t.Fatalf("GetActiveDna: %v", err)
	}
	if active == nil || active.ID != res.SnapshotID {
		t.Fatalf("GetActiveDna = %+v, want %s", active, res.SnapshotID)
	}
	if active.ParentID != "" {
		t.Errorf("initial snapshot ParentID = %q, want empty", active.ParentID)
	}

	events, err := s.RecentLearningEvents(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("RecentLearningEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != store.EventBirth {
		t.Fatalf("events = %+v, want one birth event", events)
	}
}

func TestMutateAppliesPatchAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMutator(t)

	if err := s.CreateTarget(ctx, &store.Target{ID: "t1", URL: "https://example.com"}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if _, err := m.CreateInitial(ctx, "t1"); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	res, err := m.Mutate(ctx, "t1", Proposal{
		Gene:       dna.GeneTiming,
		Patch:      map[string]any{"delayRange": map[string]any{"min": 2000, "max": 5000}},
		Reason:     "observed rate limiting",
		Confidence: 0.8,
		RiskLevel:  RiskLow,
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if res.Version != "1.0.1" {
		t.Errorf("Version = %q, want %q", res.Version, "1.0.1")
	}
	if len(res.Diff.Modified) == 0 {
		t.Errorf("Diff.Modified is empty, want delayRange listed")
	}

	active, err := s.GetActiveDna(ctx, "t1")
	if err != nil {
		t.Fatalf("GetActiveDna: %v", err)
	}
	if active.ID != res.SnapshotID {
		t.Fatalf("active snapshot = %s, want %s", active.ID, res.SnapshotID)
	}

	updated, err := dna.Unmarshal([]byte(active.DnaJSON))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if updated.Timing.DelayRange.Min != 2000 || updated.Timing.DelayRange.Max != 5000 {
		t.Errorf("DelayRange = %+v, want {2000 5000}", updated.Timing.DelayRange)
	}

	lineage, err := s.GetDnaLineage(ctx, "t1")
	if err != nil {
		t.Fatalf("GetDnaLineage: %v", err)
	}
	if len(lineage) != 2 {
		t.Fatalf("len(lineage) = %d, want 2", len(lineage))
	}
	if lineage[1].ParentID != lineage[0].ID {
		t.Errorf("child ParentID = %q, want %q", lineage[1].ParentID, lineage[0].ID)
	}

	events, err := s.RecentLearningEvents(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("RecentLearningEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != store.EventMutation || events[0].TrustImpact != 5 {
		t.Fatalf("events[0] = %+v, want mutation event with trustImpact 5", events[0])
	}
}

func TestMutateHighRiskNegativeTrustImpact(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMutator(t)

	if err := s.CreateTarget(ctx, &store.Target{ID: "t1", URL: "https://example.com"}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if _, err := m.CreateInitial(ctx, "t1"); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	_, err := m.Mutate(ctx, "t1", Proposal{
		Gene:      dna.GeneNetwork,
		Patch:     map[string]any{"httpVersion": "h2"},
		RiskLevel: RiskHigh,
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	events, err := s.RecentLearningEvents(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("RecentLearningEvents: %v", err)
	}
	if events[0].TrustImpact != -5 {
		t.Errorf("TrustImpact = %d, want -5", events[0].TrustImpact)
	}
}

func TestMutateNoActiveDna(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMutator(t)

	if err := s.CreateTarget(ctx, &store.Target{ID: "t1", URL: "https://example.com"}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	_, err := m.Mutate(ctx, "t1", Proposal{Gene: dna.GeneTiming, Patch: map[string]any{}})
	if err == nil {
		t.Fatal("Mutate with no active dna: want error")
	}
}

func TestMutateUnknownGene(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMutator(t)

	if err := s.CreateTarget(ctx, &store.Target{ID: "t1", URL: "https://example.com"}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if _, err := m.CreateInitial(ctx, "t1"); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	_, err := m.Mutate(ctx, "t1", Proposal{Gene: "nonexistent", Patch: map[string]any{}})
	if err == nil {
		t.Fatal("Mutate with unknown gene: want error")
	}
}
