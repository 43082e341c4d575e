// Package filter screens discovered manifest entries before they are
// committed to the catalog.
package filter

import (
	"fmt"

	"tutorgraph/pkg/domain"
)

// Filter decides whether a discovered video belongs in the manifest.
type Filter interface {
	ShouldKeep(entry domain.ManifestEntry) (bool, error)
}

// Apply runs all filters over the entries and keeps those every filter
// accepts.
func Apply(entries []domain.ManifestEntry, filters ...Filter) ([]domain.ManifestEntry, error) {
	filtered := make([]domain.ManifestEntry, 0, len(entries))

	for _, entry := range entries {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(entry)
			if err != nil {
				return nil, fmt.Errorf("filter error for video %s: %w", entry.VideoID, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

// MinViewsFilter drops videos below a view-count floor. Entries without a
// view count pass: most discovery sources do not carry one.
type MinViewsFilter struct {
	Min int64
}

func (f MinViewsFilter) ShouldKeep(entry domain.ManifestEntry) (bool, error) {
	if entry.ViewCount == 0 {
		return true, nil
	}
	return entry.ViewCount >= f.Min, nil
}

// MaxDurationFilter drops videos longer than a ceiling, in seconds. Long
// livestream archives dominate transcription cost for little extractable
// knowledge.
type MaxDurationFilter struct {
	MaxSeconds int
}

func (f MaxDurationFilter) ShouldKeep(entry domain.ManifestEntry) (bool, error) {
	if entry.DurationSeconds == 0 {
		return true, nil
	}
	return entry.DurationSeconds <= f.MaxSeconds, nil
}

// ValidIDFilter drops entries whose video ID is not the expected 11
// characters.
type ValidIDFilter struct{}

func (ValidIDFilter) ShouldKeep(entry domain.ManifestEntry) (bool, error) {
	return len(entry.VideoID) == 11, nil
}
