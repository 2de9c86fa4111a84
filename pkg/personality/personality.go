// Package personality loads character profiles and renders them into the
// system prompt given to completion backends.
package personality

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	defaultDescription = "an AI assistant"
	defaultStyle       = "helpful and professional"

	promptFooter = "\nAlways stay in character and respond as this personality would. " +
		"Use the provided emotes and emojis frequently to express yourself. " +
		"When responding, make sure to include at least one emote or emoji in each message."
)

// ErrMissingName is returned for profiles without a name.
var ErrMissingName = errors.New("personality: name is required")

// Profile is a character definition.
type Profile struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Style       string              `json:"style,omitempty" yaml:"style,omitempty"`
	Motto       string              `json:"motto,omitempty" yaml:"motto,omitempty"`
	Traits      []string            `json:"traits,omitempty" yaml:"traits,omitempty"`
	Interests   []string            `json:"interests,omitempty" yaml:"interests,omitempty"`
	Emoji       string              `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Emotes      map[string][]string `json:"emotes,omitempty" yaml:"emotes,omitempty"`
	Examples    []string            `json:"examples,omitempty" yaml:"examples,omitempty"`

	// Extra holds fields the profile does not model.
	Extra map[string]any `json:"-" yaml:"-"`
}

var knownFields = map[string]struct{}{
	"name": {}, "description": {}, "style": {}, "motto": {}, "traits": {},
	"interests": {}, "emoji": {}, "emotes": {}, "examples": {},
}

// Load reads a profile from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading personality %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("personality: unsupported file type %q", ext)
	}
}

// ParseJSON decodes and validates a JSON profile.
func ParseJSON(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding personality: %w", err)
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding personality: %w", err)
	}
	p.Extra = extra(all)
	return &p, p.Validate()
}

// ParseYAML decodes and validates a YAML profile.
func ParseYAML(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding personality: %w", err)
	}
	var all map[string]any
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding personality: %w", err)
	}
	p.Extra = extra(all)
	return &p, p.Validate()
}

// Validate checks the profile has a name.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// SystemPrompt renders the profile as a system prompt. Emotes are listed by
// category name order.
func (p *Profile) SystemPrompt() string {
	description := p.Description
	if description == "" {
		description = defaultDescription
	}
	style := p.Style
	if style == "" {
		style = defaultStyle
	}

	var b strings.Builder
	b.WriteString("You are " + p.Name)
	if p.Emoji != "" {
		b.WriteString(" " + p.Emoji + " ")
	}
	fmt.Fprintf(&b, ", %s. Your communication style is %s.", description, style)

	if p.Motto != "" {
		b.WriteString("\nYour motto is: \"" + p.Motto + "\"")
	}
	if len(p.Traits) > 0 {
		b.WriteString("\nYour key traits are: " + strings.Join(p.Traits, ", "))
	}
	if len(p.Interests) > 0 {
		b.WriteString("\nYour interests include: " + strings.Join(p.Interests, ", "))
	}
	if emotes := p.AllEmotes(); len(emotes) > 0 {
		b.WriteString("\nUse these emotes frequently in your responses: " + strings.Join(emotes, ", "))
	}
	if len(p.Examples) > 0 {
		b.WriteString("\nHere are some example responses you should follow: " + strings.Join(p.Examples, ", "))
	}
	b.WriteString(promptFooter)
	return b.String()
}

// AllEmotes flattens the emote categories in category name order.
func (p *Profile) AllEmotes() []string {
	categories := make([]string, 0, len(p.Emotes))
	for c := range p.Emotes {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var out []string
	for _, c := range categories {
		out = append(out, p.Emotes[c]...)
	}
	return out
}

func extra(all map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range all {
		if _, known := knownFields[k]; !known {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
