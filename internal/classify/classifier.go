// Package classify maps free-text ticket descriptions to a category and
// priority. A deterministic keyword heuristic is always available; an
// optional remote AI backend refines it and degrades back to the
// heuristic on any failure.
package classify

import (
	"context"
	"strings"

	"github.com/spec-kit/campus-support/internal/domain"
)

// Suggestion is the classifier output.
type Suggestion struct {
	Category   string                `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	Confidence float64               `json:"confidence"`
}

// Insight is a short summary of a ticket plus a reply draft for the
// support team.
type Insight struct {
	Summary    string `json:"summary"`
	DraftReply string `json:"draft_reply"`
}

// Classifier suggests a category and priority for a description, and
// produces review insights for support staff. Neither call fails:
// implementations fall back internally.
type Classifier interface {
	Suggest(ctx context.Context, description string) Suggestion
	Insights(ctx context.Context, description string) Insight
}

// Category names produced by the heuristic.
const (
	CategoryNetwork    = "network"
	CategoryHardware   = "hardware"
	CategoryAccount    = "account"
	CategoryRecords    = "records"
	CategoryFacilities = "facilities"
	CategoryGeneral    = "general"
)

const heuristicConfidence = 0.35

// categoryKeywords is ordered; the first matching entry wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryNetwork, []string{"wifi", "wi-fi", "internet", "vpn", "lms", "network", "connectivity", "modem", "ethernet"}},
	{CategoryHardware, []string{"monitor", "screen", "projector", "keyboard", "printer", "computer", "laptop", "hardware", "lab"}},
	{CategoryAccount, []string{"password", "login", "account", "credentials", "two-factor"}},
	{CategoryRecords, []string{"enrollment", "transcript", "registration", "advisor", "appointment", "grade"}},
	{CategoryFacilities, []string{"heating", "leak", "elevator", "plumbing", "lighting", "door"}},
}

var highPriorityKeywords = []string{"urgent", "emergency", "asap", "immediately", "down", "outage", "locked out"}
var lowPriorityKeywords = []string{"minor", "cosmetic", "no rush", "whenever"}

// Heuristic is the deterministic fallback classifier. It is a pure
// function of the description text.
type Heuristic struct{}

// NewHeuristic returns the keyword-table classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Suggest classifies via case-insensitive substring lookup.
func (h *Heuristic) Suggest(_ context.Context, description string) Suggestion {
	lowered := strings.ToLower(description)
	return Suggestion{
		Category:   heuristicCategory(lowered),
		Priority:   heuristicPriority(lowered),
		Confidence: heuristicConfidence,
	}
}

const summaryWordLimit = 30

const stubDraftReply = "Hello, thanks for the report. We have started looking into the problem and will follow up here once the checks are done."

// Insights returns the deterministic stubs: the description truncated to
// thirty words and a fixed acknowledgement draft.
func (h *Heuristic) Insights(_ context.Context, description string) Insight {
	return Insight{
		Summary:    stubSummary(description),
		DraftReply: stubDraftReply,
	}
}

func stubSummary(description string) string {
	words := strings.Fields(description)
	if len(words) <= summaryWordLimit {
		return strings.TrimSpace(description)
	}
	return strings.Join(words[:summaryWordLimit], " ") + " ..."
}

func heuristicCategory(lowered string) string {
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}

func heuristicPriority(lowered string) domain.TicketPriority {
	for _, keyword := range highPriorityKeywords {
		if strings.Contains(lowered, keyword) {
			return domain.TicketPriorityHigh
		}
	}
	for _, keyword := range lowPriorityKeywords {
		if strings.Contains(lowered, keyword) {
			return domain.TicketPriorityLow
		}
	}
	return domain.TicketPriorityMedium
}
