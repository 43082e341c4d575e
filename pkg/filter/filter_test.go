package filter

import (
	"testing"

	"tutorgraph/pkg/domain"
)

func TestMinViewsFilter(t *testing.T) {
	f := MinViewsFilter{Min: 1000}

	keep, _ := f.ShouldKeep(domain.ManifestEntry{ViewCount: 5000})
	if !keep {
		t.Error("entry above the floor should pass")
	}
	keep, _ = f.ShouldKeep(domain.ManifestEntry{ViewCount: 10})
	if keep {
		t.Error("entry below the floor should be dropped")
	}
	keep, _ = f.ShouldKeep(domain.ManifestEntry{})
	if !keep {
		t.Error("entry without a view count should pass")
	}
}

func TestMaxDurationFilter(t *testing.T) {
	f := MaxDurationFilter{MaxSeconds: 3600}

	keep, _ := f.ShouldKeep(domain.ManifestEntry{DurationSeconds: 1800})
	if !keep {
		t.Error("short video should pass")
	}
	keep, _ = f.ShouldKeep(domain.ManifestEntry{DurationSeconds: 7200})
	if keep {
		t.Error("long livestream should be dropped")
	}
	keep, _ = f.ShouldKeep(domain.ManifestEntry{})
	if !keep {
		t.Error("entry without a duration should pass")
	}
}

func TestValidIDFilter(t *testing.T) {
	f := ValidIDFilter{}

	keep, _ := f.ShouldKeep(domain.ManifestEntry{VideoID: "dQw4w9WgXcQ"})
	if !keep {
		t.Error("11-character ID should pass")
	}
	keep, _ = f.ShouldKeep(domain.ManifestEntry{VideoID: "short"})
	if keep {
		t.Error("short ID should be dropped")
	}
}

func TestApplyChainsFilters(t *testing.T) {
	entries := []domain.ManifestEntry{
		{VideoID: "dQw4w9WgXcQ", ViewCount: 5000},
		{VideoID: "abcdefghijk", ViewCount: 10},
		{VideoID: "bad"},
	}
	out, err := Apply(entries, ValidIDFilter{}, MinViewsFilter{Min: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].VideoID != "dQw4w9WgXcQ" {
		t.Errorf("filtered = %+v", out)
	}
}
