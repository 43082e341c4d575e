package linking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/logging"
)

type fakeLinkStore struct {
	mu       sync.Mutex
	mentions []domain.ConceptMention
	existing map[string]bool
	links    []domain.CrossVideoLink
	failPair string // pair key whose upserts fail
}

func (f *fakeLinkStore) MentionsForVideos(ctx context.Context, videoIDs []string) ([]domain.ConceptMention, error) {
	return f.mentions, nil
}

func (f *fakeLinkStore) LinkedPairs(ctx context.Context) (map[string]bool, error) {
	if f.existing == nil {
		return map[string]bool{}, nil
	}
	return f.existing, nil
}

func (f *fakeLinkStore) UpsertLink(ctx context.Context, link domain.CrossVideoLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, b := link.SourceVideoID, link.TargetVideoID
	if a > b {
		a, b = b, a
	}
	if f.failPair != "" && a+"|"+b == f.failPair {
		return errors.New("connection reset")
	}
	f.links = append(f.links, link)
	return nil
}

func (f *fakeLinkStore) find(source, target string) *domain.CrossVideoLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.links {
		if f.links[i].SourceVideoID == source && f.links[i].TargetVideoID == target {
			return &f.links[i]
		}
	}
	return nil
}

type fakeSummaries struct{}

func (fakeSummaries) VideoSummary(ctx context.Context, videoID string) (VideoSummary, error) {
	return VideoSummary{VideoID: videoID, Title: "Video " + videoID}, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	cls   Classification
	err   error
}

func (f *fakeClassifier) Classify(ctx context.Context, source, target VideoSummary, shared []string) (Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Classification{}, f.err
	}
	return f.cls, nil
}

// sharedMentions gives two videos n shared concepts.
func sharedMentions(a, b string, n int) []domain.ConceptMention {
	var out []domain.ConceptMention
	for i := 0; i < n; i++ {
		c := fmt.Sprintf("concept-%d", i)
		out = append(out,
			domain.ConceptMention{VideoID: a, ConceptName: c},
			domain.ConceptMention{VideoID: b, ConceptName: c},
		)
	}
	return out
}

func TestLinkerStrongPair(t *testing.T) {
	store := &fakeLinkStore{mentions: sharedMentions("vidA", "vidB", 5)}
	cls := &fakeClassifier{}
	l := NewLinker(store, fakeSummaries{}, cls, 2, logging.NewNop())

	stats, err := l.Run(context.Background(), []string{"vidA", "vidB"})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Linked != 1 || stats.ClassifierCalls != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if cls.calls != 0 {
		t.Error("strong pairs must not hit the classifier")
	}
	forward := store.find("vidA", "vidB")
	if forward == nil || forward.Kind != domain.LinkRelated || forward.Confidence != 0.9 {
		t.Errorf("forward link = %+v", forward)
	}
	if len(forward.SharedConcepts) != 5 {
		t.Errorf("shared concepts = %v", forward.SharedConcepts)
	}
	if reverse := store.find("vidB", "vidA"); reverse == nil {
		t.Error("reverse edge missing")
	}
}

func TestLinkerTangentialPair(t *testing.T) {
	store := &fakeLinkStore{mentions: sharedMentions("vidA", "vidB", 2)}
	cls := &fakeClassifier{}
	l := NewLinker(store, fakeSummaries{}, cls, 2, logging.NewNop())

	if _, err := l.Run(context.Background(), []string{"vidA", "vidB"}); err != nil {
		t.Fatal(err)
	}
	forward := store.find("vidA", "vidB")
	if forward == nil || forward.Kind != domain.LinkRelated || forward.Confidence != 0.3 {
		t.Errorf("forward link = %+v", forward)
	}
	if cls.calls != 0 {
		t.Error("tangential pairs must not hit the classifier")
	}
}

func TestLinkerMediumPairClassified(t *testing.T) {
	store := &fakeLinkStore{mentions: sharedMentions("vidA", "vidB", 3)}
	cls := &fakeClassifier{cls: Classification{
		Kind: domain.LinkPrerequisite, Confidence: 0.85, Rationale: "A introduces what B assumes",
	}}
	l := NewLinker(store, fakeSummaries{}, cls, 2, logging.NewNop())

	stats, err := l.Run(context.Background(), []string{"vidA", "vidB"})
	if err != nil {
		t.Fatal(err)
	}
	if cls.calls != 1 || stats.ClassifierCalls != 1 {
		t.Errorf("classifier calls = %d, stats = %+v", cls.calls, stats)
	}
	forward := store.find("vidA", "vidB")
	if forward == nil || forward.Kind != domain.LinkPrerequisite {
		t.Errorf("forward link = %+v", forward)
	}
	reverse := store.find("vidB", "vidA")
	if reverse == nil || reverse.Kind != domain.LinkFollowUp {
		t.Errorf("reverse edge should mirror prerequisite to follow_up: %+v", reverse)
	}
}

func TestLinkerClassifierFailureFallsBack(t *testing.T) {
	store := &fakeLinkStore{mentions: sharedMentions("vidA", "vidB", 3)}
	cls := &fakeClassifier{err: errors.New("model unavailable")}
	l := NewLinker(store, fakeSummaries{}, cls, 2, logging.NewNop())

	stats, err := l.Run(context.Background(), []string{"vidA", "vidB"})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Linked != 1 {
		t.Errorf("failed classification should still link: %+v", stats)
	}
	forward := store.find("vidA", "vidB")
	if forward == nil || forward.Kind != domain.LinkRelated || forward.Confidence != 0.5 {
		t.Errorf("fallback link = %+v", forward)
	}
}

// gatedClassifier blocks every call until release is closed.
type gatedClassifier struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedClassifier) Classify(ctx context.Context, source, target VideoSummary, shared []string) (Classification, error) {
	close(g.started)
	<-g.release
	return Classification{Kind: domain.LinkBuildsOn, Confidence: 0.8}, nil
}

func TestLinkerErrorWaitsForInFlightClassification(t *testing.T) {
	// Pair "aaaa|bbbb" (medium) sorts before "aaaa|cccc" (strong), so its
	// classifier goroutine is in flight when the strong write fails. Run
	// must not return until that goroutine has finished and recorded its
	// link in the stats.
	var mentions []domain.ConceptMention
	for i := 0; i < 3; i++ {
		c := fmt.Sprintf("medium-%d", i)
		mentions = append(mentions,
			domain.ConceptMention{VideoID: "aaaa", ConceptName: c},
			domain.ConceptMention{VideoID: "bbbb", ConceptName: c},
		)
	}
	for i := 0; i < 5; i++ {
		c := fmt.Sprintf("strong-%d", i)
		mentions = append(mentions,
			domain.ConceptMention{VideoID: "aaaa", ConceptName: c},
			domain.ConceptMention{VideoID: "cccc", ConceptName: c},
		)
	}
	store := &fakeLinkStore{mentions: mentions, failPair: "aaaa|cccc"}
	cls := &gatedClassifier{started: make(chan struct{}), release: make(chan struct{})}
	l := NewLinker(store, fakeSummaries{}, cls, 2, logging.NewNop())

	go func() {
		<-cls.started
		close(cls.release)
	}()

	stats, err := l.Run(context.Background(), []string{"aaaa", "bbbb", "cccc"})
	if err == nil {
		t.Fatal("the failed strong write should surface as the pass error")
	}
	if stats.Linked != 1 || stats.ClassifierCalls != 1 {
		t.Errorf("stats = %+v, want the medium pair counted before return", stats)
	}
	if store.find("aaaa", "bbbb") == nil || store.find("bbbb", "aaaa") == nil {
		t.Error("medium pair edges should be written before Run returns")
	}
}

func TestLinkerSkipsExistingPairs(t *testing.T) {
	store := &fakeLinkStore{
		mentions: sharedMentions("vidA", "vidB", 5),
		existing: map[string]bool{"vidA|vidB": true},
	}
	l := NewLinker(store, fakeSummaries{}, &fakeClassifier{}, 2, logging.NewNop())

	stats, err := l.Run(context.Background(), []string{"vidA", "vidB"})
	if err != nil {
		t.Fatal(err)
	}
	if stats.PairsSkipped != 1 || stats.Linked != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(store.links) != 0 {
		t.Errorf("no links should be written: %v", store.links)
	}
}

func TestLinkerSingleVideoNoop(t *testing.T) {
	store := &fakeLinkStore{}
	l := NewLinker(store, fakeSummaries{}, &fakeClassifier{}, 2, logging.NewNop())
	stats, err := l.Run(context.Background(), []string{"vidA"})
	if err != nil {
		t.Fatal(err)
	}
	if stats.PairsConsidered != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
