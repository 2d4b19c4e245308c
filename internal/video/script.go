// Package video turns a finished collaboration into a short promo video:
// it builds a narration script from the deliverables, asks a generator for
// the footage and stores the file under the outputs directory.
package video

import (
	"fmt"
	"strings"

	"agent_agency/internal/domain"
)

// ScriptContext is the strategy material pulled out of a deliverable set for
// the narration script.
type ScriptContext struct {
	Budget      string
	Timeline    string
	KeyInsights []string
}

// ExtractContext walks the deliverables for the pieces worth narrating. The
// implementation agent owns budget and timeline, with feedback-updated values
// taking precedence over the originals. Every agent contributes its top two
// recommendations.
func ExtractContext(deliverables domain.DeliverableSet) ScriptContext {
	ctx := ScriptContext{
		Budget:   "Strategy budget not specified",
		Timeline: "Timeline to be determined",
	}

	for name, agent := range deliverables {
		final := agent.Final
		if agent.FeedbackIteration != nil {
			final = agent.FeedbackIteration
		}
		if final == nil {
			continue
		}

		if strings.Contains(name, "Implementation") || strings.Contains(name, "Jordan") {
			if v := firstOf(final.KeyOutputs, "updated_budget", "budget_breakdown"); v != "" {
				ctx.Budget = v
			}
			if v := firstOf(final.KeyOutputs, "updated_timeline", "campaign_timeline"); v != "" {
				ctx.Timeline = v
			}
		}

		recs := final.Recommendations
		if len(recs) > 2 {
			recs = recs[:2]
		}
		ctx.KeyInsights = append(ctx.KeyInsights, recs...)
	}
	if len(ctx.KeyInsights) > 5 {
		ctx.KeyInsights = ctx.KeyInsights[:5]
	}
	return ctx
}

// BuildScript composes a thirty-second narration script from the strategy
// deliverables. It is deterministic; a model-backed script writer can replace
// it behind the Generator without touching the extraction.
func BuildScript(goal string, deliverables domain.DeliverableSet, agents []domain.AgentRef) string {
	sc := ExtractContext(deliverables)

	team := make([]string, 0, len(agents))
	for _, a := range agents {
		team = append(team, fmt.Sprintf("%s (%s)", a.Name, a.Role))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "What if your next campaign was designed by an entire strategy team at once? For %q, our AI specialists did exactly that.\n\n", goal)
	if len(team) > 0 {
		fmt.Fprintf(&b, "The team: %s.\n\n", strings.Join(team, ", "))
	}
	if len(sc.KeyInsights) > 0 {
		b.WriteString("The strategy in brief:\n")
		for _, insight := range sc.KeyInsights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Budget: %s. Timeline: %s.\n\n", sc.Budget, sc.Timeline)
	b.WriteString("A complete, data-driven marketing strategy, ready to execute. Let's get started.")
	return b.String()
}

func firstOf(m map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(m[key]); v != "" {
			return v
		}
	}
	return ""
}
