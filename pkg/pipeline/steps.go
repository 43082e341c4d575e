// Package pipeline orchestrates the per-video state machine: transcription,
// batch extraction, graph normalization, connection, enrichment, embedding.
package pipeline

import "tutorgraph/pkg/domain"

// Step is one unit of per-video work. Steps run in the fixed order below;
// each durably advances the video's status when its side effects are
// complete.
type Step string

const (
	StepTranscribe Step = "transcribe"
	StepExtract    Step = "extract"
	StepNormalize  Step = "normalize"
	StepConnect    Step = "connect"
	StepEnrich     Step = "enrich"
	StepEmbed      Step = "embed"
)

// stepOrder pairs each step with the status that proves it already ran.
var stepOrder = []struct {
	step Step
	done domain.Status
}{
	{StepTranscribe, domain.StatusTranscriptDone},
	{StepExtract, domain.StatusExtractionDone},
	{StepNormalize, domain.StatusNormalized},
	{StepConnect, domain.StatusConnected},
	{StepEnrich, domain.StatusEnriched},
	{StepEmbed, domain.StatusEmbedded},
}

// Resume returns the steps still owed to a video at the given status. It is
// a pure function of the status: resuming is never special-cased per step,
// a crash at any point costs at most the one step that was interrupted.
func Resume(status domain.Status) []Step {
	var remaining []Step
	for _, entry := range stepOrder {
		if !status.AtLeast(entry.done) {
			remaining = append(remaining, entry.step)
		}
	}
	return remaining
}

// doneStatus returns the status a step advances to.
func doneStatus(step Step) domain.Status {
	for _, entry := range stepOrder {
		if entry.step == step {
			return entry.done
		}
	}
	return domain.StatusPending
}
