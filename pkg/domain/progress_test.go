package domain

import (
	"strings"
	"testing"
)

func TestStatusOrder(t *testing.T) {
	ordered := []Status{
		StatusPending,
		StatusTranscriptDone,
		StatusBatchQueued,
		StatusExtractionDone,
		StatusNormalized,
		StatusConnected,
		StatusEnriched,
		StatusEmbedded,
		StatusCompleted,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("expected %s to rank above %s", ordered[i], ordered[i-1])
		}
	}
}

func TestFailedRanksAsPending(t *testing.T) {
	if StatusFailed.Rank() != StatusPending.Rank() {
		t.Errorf("failed should rank as pending, got %d vs %d", StatusFailed.Rank(), StatusPending.Rank())
	}
	if StatusFailed.AtLeast(StatusTranscriptDone) {
		t.Error("failed should not have reached transcript_done")
	}
}

func TestUnknownStatusRanksAsPending(t *testing.T) {
	corrupt := Status("garbled")
	if corrupt.Rank() != 0 {
		t.Errorf("unknown status should rank 0, got %d", corrupt.Rank())
	}
	if corrupt.Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestAtLeast(t *testing.T) {
	if !StatusNormalized.AtLeast(StatusExtractionDone) {
		t.Error("normalized should be at least extraction_done")
	}
	if !StatusCompleted.AtLeast(StatusCompleted) {
		t.Error("a status should be at least itself")
	}
	if StatusTranscriptDone.AtLeast(StatusBatchQueued) {
		t.Error("transcript_done should not be at least batch_queued")
	}
}

func TestTruncateError(t *testing.T) {
	short := "something broke"
	if got := TruncateError(short); got != short {
		t.Errorf("short message should pass through, got %q", got)
	}

	long := strings.Repeat("x", 600)
	got := TruncateError(long)
	if len(got) != maxErrorMessageLen+3 {
		t.Errorf("expected truncation to %d+3 chars, got %d", maxErrorMessageLen, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated message should end with ellipsis")
	}
}
