package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpBatchPoll, 100*time.Millisecond)
	c.RecordTiming(OpBatchPoll, 300*time.Millisecond)

	snap := c.Snapshot()
	if snap.BatchPoll == nil {
		t.Fatal("expected batch_poll snapshot")
	}
	if snap.BatchPoll.Count != 2 {
		t.Errorf("count = %d, want 2", snap.BatchPoll.Count)
	}
	if snap.BatchPoll.MinTimeMs != 100 {
		t.Errorf("min = %d, want 100", snap.BatchPoll.MinTimeMs)
	}
	if snap.BatchPoll.MaxTimeMs != 300 {
		t.Errorf("max = %d, want 300", snap.BatchPoll.MaxTimeMs)
	}
	if snap.BatchPoll.AvgTimeMs != 200 {
		t.Errorf("avg = %f, want 200", snap.BatchPoll.AvgTimeMs)
	}
	if snap.BatchPoll.InputTokens != nil {
		t.Error("timing-only op should not report tokens")
	}
}

func TestRecordUsage(t *testing.T) {
	c := NewCollector()
	c.RecordUsage(OpGenerate, 50*time.Millisecond, 1000, 200)
	c.RecordUsage(OpGenerate, 150*time.Millisecond, 3000, 400)

	snap := c.Snapshot()
	if snap.Generate == nil {
		t.Fatal("expected generate snapshot")
	}
	if snap.Generate.Count != 2 {
		t.Errorf("count = %d, want 2", snap.Generate.Count)
	}
	if snap.Generate.InputTokens == nil || *snap.Generate.InputTokens != 4000 {
		t.Errorf("input tokens = %v, want 4000", snap.Generate.InputTokens)
	}
	if snap.Generate.OutputTokens == nil || *snap.Generate.OutputTokens != 600 {
		t.Errorf("output tokens = %v, want 600", snap.Generate.OutputTokens)
	}
	if snap.Generate.AvgInputTokens == nil || *snap.Generate.AvgInputTokens != 2000 {
		t.Errorf("avg input tokens = %v, want 2000", snap.Generate.AvgInputTokens)
	}
}

func TestSnapshotOmitsEmptyOps(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpEmbed, time.Millisecond)

	snap := c.Snapshot()
	if snap.Embed == nil {
		t.Error("expected embed snapshot")
	}
	if snap.Generate != nil || snap.UploadFile != nil || snap.DownloadFile != nil || snap.BatchPoll != nil {
		t.Error("untouched ops should be nil")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("uptime = %f, want >= 0", snap.UptimeSeconds)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordUsage(OpGenerate, time.Millisecond, 10, 5)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Generate.Count != 1000 {
		t.Errorf("count = %d, want 1000", snap.Generate.Count)
	}
	if *snap.Generate.InputTokens != 10000 {
		t.Errorf("input tokens = %d, want 10000", *snap.Generate.InputTokens)
	}
}
