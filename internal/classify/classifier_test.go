package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
)

func TestHeuristicSuggest(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		wantCategory string
		wantPriority domain.TicketPriority
	}{
		{
			name:         "dorm wifi connectivity",
			description:  "Dorm wifi connectivity issue on the third floor",
			wantCategory: CategoryNetwork,
			wantPriority: domain.TicketPriorityMedium,
		},
		{
			name:         "network outage is high",
			description:  "The campus network is down, outage since morning",
			wantCategory: CategoryNetwork,
			wantPriority: domain.TicketPriorityHigh,
		},
		{
			name:         "broken projector",
			description:  "Projector in lecture hall flickers",
			wantCategory: CategoryHardware,
			wantPriority: domain.TicketPriorityMedium,
		},
		{
			name:         "locked out of account",
			description:  "I am locked out of my account after a password reset",
			wantCategory: CategoryAccount,
			wantPriority: domain.TicketPriorityHigh,
		},
		{
			name:         "transcript request",
			description:  "Need an official transcript for a grad application, no rush",
			wantCategory: CategoryRecords,
			wantPriority: domain.TicketPriorityLow,
		},
		{
			name:         "leaking ceiling",
			description:  "There is a leak in the library ceiling",
			wantCategory: CategoryFacilities,
			wantPriority: domain.TicketPriorityMedium,
		},
		{
			name:         "nothing matches",
			description:  "Where can I pick up my mail?",
			wantCategory: CategoryGeneral,
			wantPriority: domain.TicketPriorityMedium,
		},
		{
			name:         "category order prefers network",
			description:  "wifi dead in the computer lab",
			wantCategory: CategoryNetwork,
			wantPriority: domain.TicketPriorityMedium,
		},
	}

	classifier := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Suggest(context.Background(), tt.description)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantPriority, got.Priority)
			assert.InDelta(t, heuristicConfidence, got.Confidence, 0.0001)
		})
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	classifier := NewHeuristic()
	first := classifier.Suggest(context.Background(), "VPN keeps dropping, urgent")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, classifier.Suggest(context.Background(), "VPN keeps dropping, urgent"))
	}
}

func TestHeuristicInsights(t *testing.T) {
	classifier := NewHeuristic()

	t.Run("short description passes through", func(t *testing.T) {
		got := classifier.Insights(context.Background(), "Printer on floor two jams constantly")
		assert.Equal(t, "Printer on floor two jams constantly", got.Summary)
		assert.Equal(t, stubDraftReply, got.DraftReply)
	})

	t.Run("long description truncated to thirty words", func(t *testing.T) {
		long := strings.Repeat("word ", 45)
		got := classifier.Insights(context.Background(), long)
		assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 30))+" ...", got.Summary)
	})

	t.Run("deterministic", func(t *testing.T) {
		first := classifier.Insights(context.Background(), "VPN keeps dropping, urgent")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, classifier.Insights(context.Background(), "VPN keeps dropping, urgent"))
		}
	})
}

func TestRemoteInsightsMergesPartialResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// summary present, draft missing
		_, _ = w.Write([]byte(`{"summary":"Router down in dorm B","draft_reply":""}`))
	}))
	defer server.Close()

	classifier := NewRemote(config.AIConfig{BaseURL: server.URL, TimeoutSeconds: 2}, zap.NewNop())
	got := classifier.Insights(context.Background(), "The router in dorm B stopped responding")

	assert.Equal(t, "Router down in dorm B", got.Summary)
	assert.Equal(t, stubDraftReply, got.DraftReply)
}

func TestRemoteInsightsFallsBackOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	classifier := NewRemote(config.AIConfig{BaseURL: server.URL, TimeoutSeconds: 2}, zap.NewNop())
	got := classifier.Insights(context.Background(), "The router in dorm B stopped responding")

	assert.Equal(t, "The router in dorm B stopped responding", got.Summary)
	assert.Equal(t, stubDraftReply, got.DraftReply)
}

func TestNewSelectsHeuristicWithoutBaseURL(t *testing.T) {
	classifier := New(config.AIConfig{}, zap.NewNop())
	_, ok := classifier.(*Heuristic)
	require.True(t, ok)
}

func TestRemoteSuggestMergesPartialResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// valid category, missing priority, out-of-range confidence
		_, _ = w.Write([]byte(`{"category":"hardware","priority":"","confidence":1.7}`))
	}))
	defer server.Close()

	classifier := NewRemote(config.AIConfig{BaseURL: server.URL, TimeoutSeconds: 2}, zap.NewNop())
	got := classifier.Suggest(context.Background(), "urgent: projector broken")

	assert.Equal(t, "hardware", got.Category)
	assert.Equal(t, domain.TicketPriorityHigh, got.Priority)
	assert.InDelta(t, heuristicConfidence, got.Confidence, 0.0001)
}

func TestRemoteSuggestFallsBackOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	classifier := NewRemote(config.AIConfig{BaseURL: server.URL, TimeoutSeconds: 2}, zap.NewNop())
	got := classifier.Suggest(context.Background(), "dorm wifi connectivity issue")

	assert.Equal(t, CategoryNetwork, got.Category)
	assert.Equal(t, domain.TicketPriorityMedium, got.Priority)
	assert.InDelta(t, heuristicConfidence, got.Confidence, 0.0001)
}
