package domain

import (
	"fmt"
	"strings"
)

// ValidationReport collects every problem found in a batch. Ordinary issues
// and fingerprint violations are reported separately: the latter imply
// post-generation tampering and carry a higher severity.
type ValidationReport struct {
	Issues              []string
	IntegrityViolations []string
}

// Valid reports whether the batch passed every evaluated check.
func (r ValidationReport) Valid() bool {
	return len(r.Issues) == 0 && len(r.IntegrityViolations) == 0
}

// HasIntegrityViolation reports whether any fingerprint check failed.
func (r ValidationReport) HasIntegrityViolation() bool {
	return len(r.IntegrityViolations) > 0
}

// ValidateLoose runs the structural checks applied synchronously with
// generation: count, content, ordering, and audio/video pairing. All checks
// are evaluated so a caller sees every problem at once.
func ValidateLoose(batch *Batch, items []BatchItem) ValidationReport {
	var report ValidationReport
	if batch == nil {
		report.Issues = append(report.Issues, "batch is missing")
		return report
	}

	if len(items) != batch.DeclaredCount {
		report.Issues = append(report.Issues,
			fmt.Sprintf("count mismatch: expected %d, found %d", batch.DeclaredCount, len(items)))
	}

	for i := range items {
		item := &items[i]
		if strings.TrimSpace(item.Content) == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("item %d has no content", i))
		}
		if item.Index != i {
			report.Issues = append(report.Issues, fmt.Sprintf("order mismatch at index %d", i))
		}
		if item.HasVideo() && !item.HasAudio() {
			report.Issues = append(report.Issues, fmt.Sprintf("item %d has video but no audio", i))
		}
	}

	return report
}

// ValidateStrict runs the full pre-publish gate: the loose checks plus asset
// completeness, title uniqueness, and fingerprint verification. Publishing
// must refuse to proceed while any strict-mode issue is present.
func ValidateStrict(batch *Batch, items []BatchItem) ValidationReport {
	report := ValidateLoose(batch, items)
	if batch == nil {
		return report
	}

	assetComplete := batch.Status.rank() >= BatchStatusAssetsReady.rank()

	seenTitles := make(map[string]bool, len(items))
	for i := range items {
		item := &items[i]

		if assetComplete && !item.HasAudio() && !item.HasVideo() {
			report.Issues = append(report.Issues, fmt.Sprintf("item %d missing required asset", i))
		}

		if seenTitles[item.Title] {
			report.Issues = append(report.Issues, fmt.Sprintf("duplicate title: %q", item.Title))
		}
		seenTitles[item.Title] = true

		if item.Fingerprint != ContentFingerprint(item.Content) {
			report.IntegrityViolations = append(report.IntegrityViolations,
				fmt.Sprintf("item %d fingerprint mismatch", i))
		}
	}

	return report
}
