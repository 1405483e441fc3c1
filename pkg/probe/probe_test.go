package probe

import (
	"context"
	"errors"
	"testing"
)

func TestRun_CollectsResults(t *testing.T) {
	probes := []Probe{
		{Name: "ok", Check: func(ctx context.Context) error { return nil }},
		{Name: "bad", Check: func(ctx context.Context) error { return errors.New("nope") }},
	}

	results := Run(context.Background(), probes)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("ok probe failed: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("bad probe did not fail")
	}
}

func TestAnalyzeResults_CriticalFailure(t *testing.T) {
	results := []Result{
		{Probe: Probe{Name: "optional"}, Error: errors.New("meh")},
		{Probe: Probe{Name: "required", Critical: true}, Error: errors.New("fatal")},
	}

	err := AnalyzeResults(results)
	if err == nil {
		t.Fatal("expected error for critical failure")
	}
}

func TestAnalyzeResults_NonCriticalTolerated(t *testing.T) {
	results := []Result{
		{Probe: Probe{Name: "optional"}, Error: errors.New("meh")},
		{Probe: Probe{Name: "fine"}},
	}

	if err := AnalyzeResults(results); err != nil {
		t.Fatalf("non-critical failure should pass: %v", err)
	}
}
