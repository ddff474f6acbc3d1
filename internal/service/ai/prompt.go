package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

// BuildSystemPrompt renders the persona instruction for one turn.
func BuildSystemPrompt(sp speaker.Speaker, history string, t topic.Topic, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s. ", sp.Name, sp.Description)
	fmt.Fprintf(&b, "Your communication style: %s. ", sp.Style)
	fmt.Fprintf(&b, "Key traits: %s. ", strings.Join(sp.Traits, ", "))

	if history != "" {
		fmt.Fprintf(&b, "\n\nPrevious conversation context:\n%s\n\n", history)
	}

	fmt.Fprintf(&b, "Current topic: %s\n\n", t)

	if question != "" {
		fmt.Fprintf(&b, "A user has asked: \"%s\"\n\n", question)
	}

	fmt.Fprintf(&b, "Respond as %s would. Keep responses concise (2-3 sentences), authentic to your personality, and engaging. Use your characteristic tone and mannerisms.", sp.Name)
	return b.String()
}

// BuildUserPrompt returns the question itself, or the continue instruction when
// no question was asked.
func BuildUserPrompt(t topic.Topic, question string) string {
	if question != "" {
		return question
	}
	return fmt.Sprintf("Continue the discussion about %s. Keep your response concise (2-3 sentences max) and stay in character.", t)
}
