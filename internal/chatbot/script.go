package chatbot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhoneOptOut is the reply that skips the phone step without relaying it.
const PhoneOptOut = "I'd rather not provide my phone number"

// DialogueStep is one prompt in the script.
type DialogueStep struct {
	Index   int      `yaml:"-"       json:"index"`
	Prompt  string   `yaml:"prompt"  json:"prompt"`
	Field   string   `yaml:"field"   json:"field,omitempty"`
	Options []string `yaml:"options" json:"options,omitempty"`
}

// HasField reports whether the step collects a form field.
func (s DialogueStep) HasField() bool {
	return s.Field != ""
}

// Script is the ordered, immutable dialogue driving the chat widget. Step 0 is
// the entry gate and the last step is the closing follow-up.
type Script struct {
	Name           string            `yaml:"name"            json:"name"`
	Steps          []DialogueStep    `yaml:"steps"           json:"steps"`
	DeclineMessage string            `yaml:"decline_message" json:"decline_message"`
	ContactMessage string            `yaml:"contact_message" json:"contact_message"`
	ClosingMessage string            `yaml:"closing_message" json:"closing_message"`
	OptOut         map[string]string `yaml:"opt_out"         json:"opt_out,omitempty"`
}

var (
	// ErrScriptTooShort is returned when a script lacks a gate and a closing step.
	ErrScriptTooShort = errors.New("chatbot: script needs at least two steps")
	// ErrEmptyPrompt is returned when a step has no prompt text.
	ErrEmptyPrompt = errors.New("chatbot: step prompt is required")
)

// DefaultScript returns the ShineBot quote script.
func DefaultScript() *Script {
	s := &Script{
		Name: "shinebot-quote",
		Steps: []DialogueStep{
			{
				Prompt:  "Hi there! 👋 I'm ShineBot, your friendly cleaning assistant. Would you like help with getting a quote for our cleaning services?",
				Options: []string{"Yes, please help me", "No thanks"},
			},
			{
				Prompt: "Great! What's your name?",
				Field:  "name",
			},
			{
				Prompt: "Nice to meet you! What's the best email where we can reach you?",
				Field:  "email",
			},
			{
				Prompt:  "Perfect! What type of cleaning service are you interested in?",
				Field:   "service",
				Options: []string{"Office Cleaning", "Residential Cleaning", "Carpet Cleaning", "Window Cleaning", "Deep Cleaning", "Other"},
			},
			{
				Prompt: "Could you briefly describe what you need cleaned?",
				Field:  "message",
			},
			{
				Prompt:  "Thank you! Would you like us to contact you by phone as well? If yes, please provide your phone number.",
				Field:   "phone",
				Options: []string{PhoneOptOut},
			},
			{
				Prompt:  "Thanks for providing your information! Our team will review your requirements and get back to you soon. Would you like me to help with anything else?",
				Options: []string{"I have another question", "No, that's all for now"},
			},
		},
		DeclineMessage: "No problem! If you need any assistance with our cleaning services, just click this chat button again.",
		ContactMessage: "Feel free to ask! Or you can call us directly at 02040161664 for immediate assistance.",
		ClosingMessage: "Thank you for chatting with ShineBot! Have a sparkling day! ✨",
		OptOut:         map[string]string{"phone": PhoneOptOut},
	}
	s.index()
	return s
}

// LoadScript reads a YAML script definition and validates it.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chatbot: read script %q: %w", path, err)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script definition and validates it.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("chatbot: parse script: %w", err)
	}
	s.index()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) index() {
	for i := range s.Steps {
		s.Steps[i].Index = i
	}
}

// Validate checks the script is interpretable by the engine.
func (s *Script) Validate() error {
	if len(s.Steps) < 2 {
		return ErrScriptTooShort
	}
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Prompt) == "" {
			return fmt.Errorf("%w: step %d", ErrEmptyPrompt, i)
		}
	}
	if s.Steps[0].HasField() {
		return fmt.Errorf("chatbot: entry step must not collect a field (got %q)", s.Steps[0].Field)
	}
	if last := s.Steps[len(s.Steps)-1]; last.HasField() {
		return fmt.Errorf("chatbot: closing step must not collect a field (got %q)", last.Field)
	}
	switch {
	case strings.TrimSpace(s.DeclineMessage) == "":
		return errors.New("chatbot: decline_message is required")
	case strings.TrimSpace(s.ContactMessage) == "":
		return errors.New("chatbot: contact_message is required")
	case strings.TrimSpace(s.ClosingMessage) == "":
		return errors.New("chatbot: closing_message is required")
	}
	return nil
}

// Len returns the number of steps.
func (s *Script) Len() int {
	return len(s.Steps)
}

// Step returns a copy of step i.
func (s *Script) Step(i int) (DialogueStep, bool) {
	if i < 0 || i >= len(s.Steps) {
		return DialogueStep{}, false
	}
	step := s.Steps[i]
	step.Options = append([]string(nil), step.Options...)
	return step, true
}

// IsOptOut reports whether reply is the opt-out sentinel for field.
func (s *Script) IsOptOut(field, reply string) bool {
	sentinel, ok := s.OptOut[field]
	return ok && reply == sentinel
}
