package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"agent_agency/internal/catalog"
	"agent_agency/internal/domain"
)

// uniqueAreas assigns each role the deliverable areas it alone owns, keeping
// agents from producing overlapping outputs.
var uniqueAreas = map[string][]string{
	"Market Researcher":            {"competitive_analysis", "market_insights", "competitor_threats", "market_positioning_opportunity"},
	"Brand Strategist":             {"brand_positioning", "messaging_framework", "brand_story", "brand_equity_goals"},
	"Creative Director":            {"creative_concepts", "creative_system", "virality_factors", "emotional_storytelling"},
	"Media Planner":                {"media_strategy", "channel_optimization", "budget_allocation", "reach_frequency"},
	"Data Analyst":                 {"kpi_framework", "attribution_modeling", "conversion_optimization", "predictive_analytics"},
	"Content Strategist":           {"content_strategy", "editorial_strategy", "seo_optimization", "content_distribution"},
	"Customer Insights Specialist": {"user_personas", "customer_journey", "behavioral_analysis", "user_experience"},
	"Implementation Specialist":    {"execution_plan", "resource_requirements", "risk_mitigation", "phase_timeline"},
	"Angel Investor":               {"investment_analysis", "funding_strategy", "valuation_assessment", "roi_expectations"},
}

var stances = []string{"build_on", "agree", "challenge", "question", "propose_alternative"}

// ScriptedResponder generates deterministic persona content without calling
// an external model. It is the default responder and the one the tests use;
// a model-backed responder plugs in behind the same interface.
type ScriptedResponder struct{}

func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{}
}

func (r *ScriptedResponder) Think(ctx context.Context, profile domain.AgentProfile, goal string) (ThinkResult, error) {
	if err := ctx.Err(); err != nil {
		return ThinkResult{}, err
	}
	angles := catalog.Angles(profile.Role)
	primary := angles[0]
	secondary := angles[len(angles)-1]

	return ThinkResult{
		Thinking: fmt.Sprintf(
			"As the %s I am looking at %q through the lens of %s. The first question is where %s creates leverage for this goal, and what the team needs from me before committing to a direction.",
			profile.Role, goal, primary, secondary,
		),
		Insights: []string{
			fmt.Sprintf("%s will be decisive for this project", primary),
			fmt.Sprintf("early alignment on %s avoids rework later", secondary),
		},
		Questions: []string{
			fmt.Sprintf("What constraints should shape the %s work?", primary),
		},
		Recommendations: []string{
			fmt.Sprintf("anchor the plan in %s before spending on execution", primary),
			fmt.Sprintf("validate %s assumptions within the first two weeks", secondary),
		},
	}, nil
}

func (r *ScriptedResponder) Initiate(ctx context.Context, profile domain.AgentProfile, goal string) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	areas := areasFor(profile.Role)
	outputs := make(map[string]string, 2)
	for _, area := range areas[:2] {
		outputs[area] = fmt.Sprintf("%s developed for %q from the %s perspective", humanize(area), goal, strings.ToLower(profile.Role))
	}
	angles := catalog.Angles(profile.Role)

	return TurnResult{
		Message: fmt.Sprintf(
			"Hello team, %s here. For %q my opening focus is %s: I will bring %s to the table so the rest of the strategy stands on solid ground.",
			profile.Name, goal, angles[0], humanize(areas[0]),
		),
		ActionTaken: "initial_analysis",
		Outputs:     outputs,
		Insights: []string{
			fmt.Sprintf("%s is where this project wins or loses", angles[0]),
		},
		QuestionsForTeam: []string{
			fmt.Sprintf("Does anyone see a conflict between %s and the overall goal?", angles[0]),
		},
	}, nil
}

func (r *ScriptedResponder) Respond(ctx context.Context, profile domain.AgentProfile, req RespondRequest) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	angle := freshAngle(profile.Role, req.DiscussedTopics)
	stance := stances[seed(profile.Name, req.From, req.Round)%len(stances)]
	areas := areasFor(profile.Role)
	area := areas[req.Round%len(areas)]

	message := fmt.Sprintf(
		"%s, from a %s standpoint I would sharpen that: %s gives us a concrete handle on it.",
		req.From, angle, humanize(area),
	)
	if stance == "challenge" || stance == "propose_alternative" {
		message = fmt.Sprintf(
			"%s, I see it differently. Through %s the numbers point another way, and %s is the safer bet.",
			req.From, angle, humanize(area),
		)
	}

	turn := TurnResult{
		Message:      message,
		Stance:       stance,
		Reasoning:    fmt.Sprintf("grounded in %s experience with %s", profile.Role, angle),
		Contribution: angle,
		Outputs: map[string]string{
			area: fmt.Sprintf("%s refined in round %d", humanize(area), req.Round),
		},
		QuestionsForTeam: []string{
			fmt.Sprintf("How does this interact with the %s work already on the table?", angle),
		},
	}
	if stance == "challenge" {
		turn.ChallengesRaised = []string{
			fmt.Sprintf("the current direction underweights %s", angle),
		}
	}
	return turn, nil
}

func (r *ScriptedResponder) Finalize(ctx context.Context, profile domain.AgentProfile, req FinalizeRequest) (domain.FinalDeliverable, error) {
	if err := ctx.Err(); err != nil {
		return domain.FinalDeliverable{}, err
	}
	areas := areasFor(profile.Role)

	if req.UserFeedback != "" {
		final := domain.FinalDeliverable{
			Deliverable: fmt.Sprintf("Updated plan for %q addressing: %s", req.Goal, req.UserFeedback),
			KeyOutputs: map[string]string{
				"updated_timeline": "revised week-by-week timeline reflecting the requested changes",
				"updated_budget":   "adjusted budget allocation reflecting the requested changes",
			},
			Summary:     fmt.Sprintf("Plan adapted by %s based on client feedback", profile.Name),
			ChangesMade: append([]string(nil), req.RequestedChanges...),
		}
		return final, nil
	}

	keyOutputs := make(map[string]string, 2)
	for _, area := range areas[:2] {
		keyOutputs[area] = fmt.Sprintf("final %s for %q", humanize(area), req.Goal)
	}
	if strings.Contains(profile.Role, "Implementation") {
		keyOutputs["budget_breakdown"] = "line-item budget across channels and phases"
		keyOutputs["campaign_timeline"] = "twelve-week execution roadmap"
	}

	return domain.FinalDeliverable{
		Deliverable: fmt.Sprintf("%s deliverable for %q", profile.Role, req.Goal),
		KeyOutputs:  keyOutputs,
		Summary:     fmt.Sprintf("%s contribution finalized by %s", profile.Role, profile.Name),
		Recommendations: []string{
			fmt.Sprintf("prioritize %s in the first phase", humanize(areas[0])),
			fmt.Sprintf("review %s against results after launch", humanize(areas[1])),
		},
	}, nil
}

func areasFor(role string) []string {
	if areas, ok := uniqueAreas[role]; ok {
		return areas
	}
	return []string{"strategic_analysis", "supporting_research"}
}

// freshAngle picks the first expertise angle whose keywords have not been
// discussed yet, falling back to the role's primary angle.
func freshAngle(role string, discussed map[string]bool) string {
	angles := catalog.Angles(role)
	for _, angle := range angles {
		used := false
		for _, word := range strings.Fields(angle) {
			if discussed[word] {
				used = true
				break
			}
		}
		if !used {
			return angle
		}
	}
	return angles[0]
}

func humanize(area string) string {
	return strings.ReplaceAll(area, "_", " ")
}

func seed(parts ...any) int {
	h := fnv.New32a()
	fmt.Fprint(h, parts...)
	return int(h.Sum32())
}
