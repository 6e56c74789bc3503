package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	calls   int
	prompt  string
	out     string
	failure error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	if g.failure != nil {
		return "", g.failure
	}
	return g.out, nil
}

func TestSynthesizeEmptyStoreSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{out: "should not appear"}
	s := NewSynthesizer(gen)

	text, count, err := s.Synthesize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if text != EmptyProfile {
		t.Fatalf("text = %q, want the fixed placeholder", text)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times, want 0", gen.calls)
	}
}

func TestSynthesizeNumbersTexts(t *testing.T) {
	gen := &fakeGenerator{out: "  they like go \n"}
	s := NewSynthesizer(gen)

	text, count, err := s.Synthesize(context.Background(), []string{"learned pgx", "ran a marathon"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if text != "they like go" {
		t.Fatalf("text = %q, want trimmed generator output", text)
	}
	if !strings.Contains(gen.prompt, "1. learned pgx\n2. ran a marathon") {
		t.Fatalf("prompt missing numbered list:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "Write in third person") {
		t.Fatalf("prompt missing instruction block:\n%s", gen.prompt)
	}
}

func TestSynthesizePropagatesGeneratorFailure(t *testing.T) {
	boom := errors.New("upstream down")
	s := NewSynthesizer(&fakeGenerator{failure: boom})

	_, _, err := s.Synthesize(context.Background(), []string{"one"})
	if !errors.Is(err, boom) {
		t.Fatalf("Synthesize() error = %v, want wrapped generator failure", err)
	}
}
