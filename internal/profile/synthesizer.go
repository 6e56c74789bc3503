package profile

import (
	"context"
	"fmt"
	"strings"
)

// EmptyProfile is returned when no memories exist; the generator is not called.
const EmptyProfile = "No memories stored yet. Add some memories to generate a profile."

const promptTemplate = "Based on the following collection of memories/notes from a person, create a concise user profile summary. " +
	"Include their interests, expertise, personality traits, and any patterns you notice. " +
	"Be insightful but respectful of privacy. Write in third person.\n\n" +
	"Memories:\n%s\n\nProfile summary:"

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer composes stored texts into a profile prompt and delegates to
// the generation model.
type Synthesizer struct {
	gen Generator
}

func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize returns the profile text and the number of texts it was built
// from. Texts arrive newest first and are already capped by the store.
func (s *Synthesizer) Synthesize(ctx context.Context, texts []string) (string, int, error) {
	if len(texts) == 0 {
		return EmptyProfile, 0, nil
	}

	var list strings.Builder
	for i, t := range texts {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d. %s", i+1, t)
	}

	out, err := s.gen.Generate(ctx, fmt.Sprintf(promptTemplate, list.String()))
	if err != nil {
		return "", 0, fmt.Errorf("generate profile: %w", err)
	}
	return strings.TrimSpace(out), len(texts), nil
}
