package video

import (
	"strings"
	"testing"

	"agent_agency/internal/domain"
)

func TestExtractContextPrefersFeedbackIteration(t *testing.T) {
	deliverables := domain.DeliverableSet{
		"Jordan Rivera": {
			Final: &domain.FinalDeliverable{
				KeyOutputs: map[string]string{
					"budget_breakdown":  "original 100k split",
					"campaign_timeline": "original 12 weeks",
				},
			},
			FeedbackIteration: &domain.FinalDeliverable{
				KeyOutputs: map[string]string{
					"updated_budget":   "reduced 70k split",
					"updated_timeline": "revised 8 weeks",
				},
			},
		},
	}

	sc := ExtractContext(deliverables)
	if sc.Budget != "reduced 70k split" {
		t.Fatalf("expected updated budget, got %q", sc.Budget)
	}
	if sc.Timeline != "revised 8 weeks" {
		t.Fatalf("expected updated timeline, got %q", sc.Timeline)
	}
}

func TestExtractContextUpdatedKeysWinWithinOutputs(t *testing.T) {
	deliverables := domain.DeliverableSet{
		"Jordan Rivera": {
			Final: &domain.FinalDeliverable{
				KeyOutputs: map[string]string{
					"updated_budget":   "adjusted budget",
					"budget_breakdown": "old budget",
				},
			},
		},
	}
	sc := ExtractContext(deliverables)
	if sc.Budget != "adjusted budget" {
		t.Fatalf("updated_budget should win over budget_breakdown, got %q", sc.Budget)
	}
}

func TestExtractContextDefaults(t *testing.T) {
	sc := ExtractContext(domain.DeliverableSet{
		"Sarah Chen": {Final: &domain.FinalDeliverable{}},
	})
	if sc.Budget != "Strategy budget not specified" {
		t.Fatalf("unexpected default budget: %q", sc.Budget)
	}
	if sc.Timeline != "Timeline to be determined" {
		t.Fatalf("unexpected default timeline: %q", sc.Timeline)
	}
	if len(sc.KeyInsights) != 0 {
		t.Fatalf("no recommendations means no insights, got %v", sc.KeyInsights)
	}
}

func TestExtractContextCapsInsights(t *testing.T) {
	many := []string{"r1", "r2", "r3", "r4"}
	deliverables := domain.DeliverableSet{
		"A": {Final: &domain.FinalDeliverable{Recommendations: many}},
		"B": {Final: &domain.FinalDeliverable{Recommendations: many}},
		"C": {Final: &domain.FinalDeliverable{Recommendations: many}},
	}

	sc := ExtractContext(deliverables)
	if len(sc.KeyInsights) != 5 {
		t.Fatalf("insights should cap at 5, got %d", len(sc.KeyInsights))
	}
	for _, insight := range sc.KeyInsights {
		if insight != "r1" && insight != "r2" {
			t.Fatalf("only each agent's top two recommendations qualify, got %q", insight)
		}
	}
}

func TestBuildScriptMentionsStrategyPieces(t *testing.T) {
	deliverables := domain.DeliverableSet{
		"Jordan Rivera": {
			Final: &domain.FinalDeliverable{
				KeyOutputs: map[string]string{
					"budget_breakdown":  "50k across paid and organic",
					"campaign_timeline": "eight-week rollout",
				},
				Recommendations: []string{"lead with video"},
			},
		},
	}
	agents := []domain.AgentRef{
		{Name: "Jordan Rivera", Role: "Implementation Specialist"},
		{Name: "Sarah Chen", Role: "Market Researcher"},
	}

	script := BuildScript("launch eco smartphone", deliverables, agents)
	for _, want := range []string{
		"launch eco smartphone",
		"Jordan Rivera (Implementation Specialist)",
		"Sarah Chen (Market Researcher)",
		"50k across paid and organic",
		"eight-week rollout",
		"lead with video",
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q:\n%s", want, script)
		}
	}
}
