package tracker

import (
	"sync"
	"testing"
)

func TestTracker_Counts(t *testing.T) {
	tr := New()

	tr.TrackSuccess("openai")
	tr.TrackSuccess("openai")
	tr.TrackFailure("openai")
	tr.TrackRetry("elevenlabs")

	snap := tr.Snapshot()
	if got := snap["openai"].Successes; got != 2 {
		t.Errorf("expected 2 successes, got %d", got)
	}
	if got := snap["openai"].Failures; got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}
	if got := snap["elevenlabs"].Retries; got != 1 {
		t.Errorf("expected 1 retry, got %d", got)
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackSuccess("p")
			tr.TrackFailure("q")
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap["p"].Successes != 50 || snap["q"].Failures != 50 {
		t.Errorf("unexpected counts: %+v", snap)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	tr := New()
	tr.TrackSuccess("p")

	snap := tr.Snapshot()
	tr.TrackSuccess("p")

	if snap["p"].Successes != 1 {
		t.Errorf("snapshot mutated after the fact: %+v", snap["p"])
	}
}
