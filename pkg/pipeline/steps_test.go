package pipeline

import (
	"reflect"
	"testing"

	"tutorgraph/pkg/domain"
)

func TestResume(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   []Step
	}{
		{domain.StatusPending, []Step{StepTranscribe, StepExtract, StepNormalize, StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusFailed, []Step{StepTranscribe, StepExtract, StepNormalize, StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusTranscriptDone, []Step{StepExtract, StepNormalize, StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusBatchQueued, []Step{StepExtract, StepNormalize, StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusExtractionDone, []Step{StepNormalize, StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusNormalized, []Step{StepConnect, StepEnrich, StepEmbed}},
		{domain.StatusConnected, []Step{StepEnrich, StepEmbed}},
		{domain.StatusEnriched, []Step{StepEmbed}},
		{domain.StatusEmbedded, nil},
		{domain.StatusCompleted, nil},
	}
	for _, tt := range tests {
		if got := Resume(tt.status); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resume(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResumeUnknownStatusStartsOver(t *testing.T) {
	got := Resume(domain.Status("garbled"))
	if len(got) != 6 || got[0] != StepTranscribe {
		t.Errorf("unknown status should owe every step, got %v", got)
	}
}

func TestDoneStatus(t *testing.T) {
	tests := map[Step]domain.Status{
		StepTranscribe: domain.StatusTranscriptDone,
		StepExtract:    domain.StatusExtractionDone,
		StepNormalize:  domain.StatusNormalized,
		StepConnect:    domain.StatusConnected,
		StepEnrich:     domain.StatusEnriched,
		StepEmbed:      domain.StatusEmbedded,
	}
	for step, want := range tests {
		if got := doneStatus(step); got != want {
			t.Errorf("doneStatus(%s) = %s, want %s", step, got, want)
		}
	}
}
