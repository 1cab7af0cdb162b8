package content

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	instructionDefault  = "Choose the best answer."
	instructionComplete = "Complete the sentence."
)

var completePrefix = regexp.MustCompile(`(?i)^complete:\s*`)

// Prompt is the canonical prompt shape. Every historical backend shape is
// adapted into it when a question is decoded, so nothing past this package
// sees the raw variants.
type Prompt struct {
	Instruction string `json:"instruction"`
	Content     string `json:"content"`
}

// Text returns the prompt as a single display line.
func (p Prompt) Text() string {
	if p.Instruction == "" {
		return p.Content
	}
	return p.Instruction + " " + p.Content
}

// UnmarshalJSON adapts the known shapes:
//
//	"Complete: She ___ home."
//	{"prompt": "..."} / {"text": "..."} / {"question": "..."} / {"content": "..."} / {"statement": "..."}
//	{"prompt": {"instruction": "...", "content": "..."}}
//	{"instruction": "...", "content": "..."}
func (p *Prompt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PromptFromText(s)
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		// Unknown shape: keep the question usable with an empty prompt.
		*p = PromptFromText("")
		return nil
	}

	if raw, ok := obj["prompt"]; ok {
		var nested struct {
			Instruction string `json:"instruction"`
			Content     string `json:"content"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && (nested.Instruction != "" || nested.Content != "") {
			if nested.Instruction == "" {
				nested.Instruction = instructionDefault
			}
			*p = Prompt{Instruction: nested.Instruction, Content: nested.Content}
			return nil
		}
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			*p = PromptFromText(s)
			return nil
		}
	}

	if _, ok := obj["instruction"]; ok {
		var canonical struct {
			Instruction string `json:"instruction"`
			Content     string `json:"content"`
		}
		if err := json.Unmarshal(b, &canonical); err == nil {
			if canonical.Instruction == "" {
				canonical.Instruction = instructionDefault
			}
			*p = Prompt{Instruction: canonical.Instruction, Content: canonical.Content}
			return nil
		}
	}

	for _, key := range []string{"text", "question", "content", "statement"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			*p = PromptFromText(s)
			return nil
		}
	}

	*p = PromptFromText("")
	return nil
}

// PromptFromText splits a plain prompt string into instruction and content.
func PromptFromText(raw string) Prompt {
	text := strings.TrimSpace(raw)
	if completePrefix.MatchString(text) {
		return Prompt{
			Instruction: instructionComplete,
			Content:     completePrefix.ReplaceAllString(text, ""),
		}
	}
	return Prompt{Instruction: instructionDefault, Content: text}
}
