package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// Outcome classifies the result of one item of a batch command.
type Outcome string

const (
	// OutcomeSucceeded means the item completed without open issues.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeSoftIssue means the item completed but carries open issues.
	OutcomeSoftIssue Outcome = "soft-issue"
	// OutcomeFailed means the item failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the item never ran.
	OutcomeSkipped Outcome = "skipped"
)

// ItemResult is the per-item entry of a batch report.
type ItemResult struct {
	Item    string  `json:"item"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
	Err     error   `json:"-"`
}

// Report is the result set of a batch command.
type Report struct {
	Operation string       `json:"operation"`
	Items     []ItemResult `json:"items"`
}

// NewReport creates an empty report for the named operation.
func NewReport(operation string) *Report {
	return &Report{Operation: operation}
}

// Succeeded records a successful item.
func (r *Report) Succeeded(item, message string) {
	r.Items = append(r.Items, ItemResult{Item: item, Outcome: OutcomeSucceeded, Message: message})
}

// SoftIssue records an item that completed with open issues.
func (r *Report) SoftIssue(item, message string) {
	r.Items = append(r.Items, ItemResult{Item: item, Outcome: OutcomeSoftIssue, Message: message})
}

// Failed records a failed item together with its error.
func (r *Report) Failed(item string, err error) {
	r.Items = append(r.Items, ItemResult{Item: item, Outcome: OutcomeFailed, Message: err.Error(), Err: err})
}

// Skipped records an item that never ran.
func (r *Report) Skipped(item, message string) {
	r.Items = append(r.Items, ItemResult{Item: item, Outcome: OutcomeSkipped, Message: message})
}

// Count returns the number of items with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Item returns the result recorded for the named item.
func (r *Report) Item(name string) (ItemResult, bool) {
	for _, item := range r.Items {
		if item.Item == name {
			return item, true
		}
	}
	return ItemResult{}, false
}

// HasFailures reports whether any item failed. Skipped items never ran and do not count.
func (r *Report) HasFailures() bool {
	return r.Count(OutcomeFailed) > 0
}

// Summary renders the outcome counts, for example "2 succeeded, 1 soft-issue, 1 failed".
func (r *Report) Summary() string {
	parts := []string{
		fmt.Sprintf("%d succeeded", r.Count(OutcomeSucceeded)),
		fmt.Sprintf("%d soft-issue", r.Count(OutcomeSoftIssue)),
		fmt.Sprintf("%d failed", r.Count(OutcomeFailed)),
	}
	if skipped := r.Count(OutcomeSkipped); skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	return strings.Join(parts, ", ")
}

// Err returns ErrBatchFailed when any item failed, nil otherwise.
func (r *Report) Err() error {
	if !r.HasFailures() {
		return nil
	}
	return zerr.With(zerr.Wrap(ErrBatchFailed, r.Operation), "summary", r.Summary())
}
