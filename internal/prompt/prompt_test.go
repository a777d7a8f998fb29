package prompt_test

import (
	"errors"
	"testing"

	"promptbed/internal/prompt"
)

func TestValidateName(t *testing.T) {
	valid := []string{
		"assessment_prompt",
		"a",
		"fraud_detection_prompt",
		"name_with_123",
	}
	for _, name := range valid {
		if err := prompt.ValidateName(name); err != nil {
			t.Errorf("expected %q valid, got %v", name, err)
		}
	}
	invalid := []string{
		"",
		"assessment*prompt",
		"what?prompt",
		"rate%prompt",
		"Assessment Prompt",
		"two words",
		"UPPER",
		"camelCase",
		"123",
		"_",
		"1_2",
	}
	for _, name := range invalid {
		err := prompt.ValidateName(name)
		if err == nil {
			t.Errorf("expected %q invalid", name)
			continue
		}
		if !errors.Is(err, prompt.ErrInvalidName) {
			t.Errorf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestNewRejectsInvalidName(t *testing.T) {
	if _, err := prompt.New("Bad Name", "content", "", ""); err == nil {
		t.Fatalf("expected constructor to reject invalid name")
	}
	p, err := prompt.New("good_name", "content", "", "desc")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if p.Version != "1.0" {
		t.Fatalf("expected default version 1.0, got %s", p.Version)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	r := prompt.NewRegistry()
	first, _ := prompt.New("assessment_prompt", "old content", "1.0", "")
	second, _ := prompt.New("assessment_prompt", "new content", "1.1", "Assessment")
	r.Register(first)
	r.Register(second)

	listing := r.List()
	if len(listing) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(listing))
	}
	got, ok := r.Get("assessment_prompt")
	if !ok || got.Content != "new content" {
		t.Fatalf("expected latest content, got %+v", got)
	}
}

func TestRegistryListDescriptionDefaultsToName(t *testing.T) {
	r := prompt.NewRegistry()
	p, _ := prompt.New("codify_prompt", "content", "", "")
	r.Register(p)
	listing := r.List()
	if listing["codify_prompt"] != "codify_prompt" {
		t.Fatalf("expected description to default to name, got %q", listing["codify_prompt"])
	}
}

func TestRegistryRemove(t *testing.T) {
	r := prompt.NewRegistry()
	p, _ := prompt.New("summarize_prompt", "content", "", "")
	r.Register(p)
	if !r.Remove("summarize_prompt") {
		t.Fatalf("expected removal of existing prompt")
	}
	if r.Remove("summarize_prompt") {
		t.Fatalf("expected second removal to report missing")
	}
	if _, ok := r.Get("summarize_prompt"); ok {
		t.Fatalf("prompt still present after removal")
	}
}

func TestSystemPrompt(t *testing.T) {
	r := prompt.NewRegistry()
	if got := r.SystemPrompt(); got != prompt.DefaultSystemPrompt {
		t.Fatalf("unexpected system prompt: %q", got)
	}
	// Registering prompts does not change the system prompt.
	p, _ := prompt.New("system_prompt", "custom", "", "")
	r.Register(p)
	if got := r.SystemPrompt(); got != prompt.DefaultSystemPrompt {
		t.Fatalf("expected default system prompt, got %q", got)
	}
}

func TestSeedRegistersStandardCatalog(t *testing.T) {
	r := prompt.NewRegistry()
	if err := prompt.Seed(r); err != nil {
		t.Fatalf("seed: %v", err)
	}
	listing := r.List()
	if len(listing) != len(prompt.Standard) {
		t.Fatalf("expected %d prompts, got %d", len(prompt.Standard), len(listing))
	}
	if listing[prompt.Assessment] != "Assessment Agent Prompt" {
		t.Fatalf("unexpected description: %q", listing[prompt.Assessment])
	}
}
