package prompt

import (
	_ "embed"
	"encoding/json"
	"strings"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/resume.txt
	resumeRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System string
	Resume string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// The embed is compile-time; this is safe to call concurrently.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System: strings.TrimSpace(systemRaw),
		Resume: strings.TrimSpace(resumeRaw),
	}
}

// RenderSystem assembles the per-turn system prompt from the agent's persona,
// traits and goal plus the restaurant profile. A nil profile renders as
// unavailable so the model knows to rely on the lookup tools.
func (p PromptSet) RenderSystem(ag *statex.Agent, profile *contractx.RestaurantProfile) string {
	persona := strings.TrimSpace(ag.Persona)
	if persona == "" {
		persona = "A friendly, helpful restaurant assistant."
	}
	goal := strings.TrimSpace(ag.Goal)
	if goal == "" {
		goal = "Answer customer questions about the restaurant and its menu."
	}

	traits := "none specified"
	if len(ag.Traits) > 0 {
		traits = strings.Join(ag.Traits, ", ")
	}

	profileText := "not available; use the getRestaurant tool before making claims about the restaurant"
	if profile != nil {
		if encoded, err := json.MarshalIndent(profile, "", "  "); err == nil {
			profileText = string(encoded)
		}
	}

	return strings.NewReplacer(
		"{{channel}}", string(ag.ChannelType),
		"{{persona}}", persona,
		"{{traits}}", traits,
		"{{goal}}", goal,
		"{{restaurant_profile}}", profileText,
	).Replace(p.System)
}

// RenderResume builds the user prompt for a resumption turn from the
// original question and the staff-supplied answer.
func (p PromptSet) RenderResume(question, answer string) string {
	return strings.NewReplacer(
		"{{question}}", strings.TrimSpace(question),
		"{{answer}}", strings.TrimSpace(answer),
	).Replace(p.Resume)
}
