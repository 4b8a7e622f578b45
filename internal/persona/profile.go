package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfileYAML []byte

// Phrase names a fixed line the persona can say.
type Phrase string

const (
	PhraseTaunt       Phrase = "taunt"
	PhraseWelcome     Phrase = "welcome"
	PhraseStillSilent Phrase = "still_silent"
	PhraseLurker      Phrase = "lurker"
	PhraseAdLead      Phrase = "ad_lead"
	PhraseAdFollow    Phrase = "ad_follow"
	PhraseSilence     Phrase = "silence"
	PhraseVault       Phrase = "vault"
)

var requiredPhrases = []Phrase{
	PhraseTaunt, PhraseWelcome, PhraseStillSilent, PhraseLurker,
	PhraseAdLead, PhraseAdFollow, PhraseSilence, PhraseVault,
}

// Generation holds sampling parameters for the generative backend.
type Generation struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// Profile is the persona the bot speaks as.
type Profile struct {
	Name          string            `yaml:"name"`
	Handle        string            `yaml:"handle"`
	TauntTriggers []string          `yaml:"taunt_triggers"`
	PromoKeywords []string          `yaml:"promo_keywords"`
	Phrases       map[Phrase]string `yaml:"phrases"`
	Generation    Generation        `yaml:"generation"`
	Prompt        string            `yaml:"prompt"`

	phrases map[Phrase]*template.Template
	prompt  *template.Template
}

// PromptData fills the generation prompt template.
type PromptData struct {
	Name         string
	Note         string
	LastThought  string
	PastTriggers int
	Message      string
}

// LoadProfile reads a persona file layered over the built-in persona.
// An empty path yields the built-in persona.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return ParseProfile(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes data over the built-in persona and compiles its templates.
func ParseProfile(data []byte) (*Profile, error) {
	p := &Profile{}
	if err := yaml.Unmarshal(defaultProfileYAML, p); err != nil {
		return nil, fmt.Errorf("decode default persona: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("decode persona: %w", err)
		}
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) compile() error {
	p.phrases = make(map[Phrase]*template.Template, len(requiredPhrases))
	for _, name := range requiredPhrases {
		src, ok := p.Phrases[name]
		if !ok || strings.TrimSpace(src) == "" {
			return fmt.Errorf("persona phrase %q is empty", name)
		}
		t, err := template.New(string(name)).Option("missingkey=error").Parse(src)
		if err != nil {
			return fmt.Errorf("parse phrase %q: %w", name, err)
		}
		p.phrases[name] = t
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(p.Prompt)
	if err != nil {
		return fmt.Errorf("parse prompt: %w", err)
	}
	p.prompt = t
	if p.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive")
	}
	p.TauntTriggers = lowerAll(p.TauntTriggers)
	p.PromoKeywords = lowerAll(p.PromoKeywords)
	return nil
}

// Say renders a fixed phrase addressed to name.
func (p *Profile) Say(phrase Phrase, name string) string {
	t, ok := p.phrases[phrase]
	if !ok {
		return ""
	}
	var b strings.Builder
	if err := t.Execute(&b, struct{ Name string }{name}); err != nil {
		return ""
	}
	return b.String()
}

// RenderPrompt builds the system prompt for a generated reply.
func (p *Profile) RenderPrompt(d PromptData) (string, error) {
	var b strings.Builder
	if err := p.prompt.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// IsTaunt reports whether a normalized message should be met with the taunt.
func (p *Profile) IsTaunt(normalized string) bool {
	return containsAny(normalized, p.TauntTriggers)
}

// WantsPromo reports whether a normalized message asks for the vault.
func (p *Profile) WantsPromo(normalized string) bool {
	return containsAny(normalized, p.PromoKeywords)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
