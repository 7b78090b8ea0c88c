package replies

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack holds the canned replies for non-scheduling small talk. Extra packs
// loaded from YAML files extend or replace the built-in lines.
type Pack struct {
	Greeting     []string `yaml:"greeting"`
	Thanks       []string `yaml:"thanks"`
	Farewell     []string `yaml:"farewell"`
	Capabilities []string `yaml:"capabilities"`
	Fallback     []string `yaml:"fallback"`
}

// Builtin returns the default reply pack.
func Builtin() *Pack {
	return &Pack{
		Greeting: []string{
			"Hi! I can help you schedule meetings. Try something like \"Schedule a meeting with Dana tomorrow at 2pm\".",
			"Hello! Tell me who you want to meet and when, and I'll set it up.",
		},
		Thanks: []string{
			"You're welcome! Anything else I can schedule for you?",
			"Happy to help!",
		},
		Farewell: []string{
			"Goodbye! Come back whenever you need a meeting set up.",
			"See you later!",
		},
		Capabilities: []string{
			"I can schedule meetings for you: tell me who to invite, when, and for how long. I'll check your calendar for conflicts, look up participant emails, and send invitations with a conferencing link.",
		},
		Fallback: []string{
			"I'm a scheduling assistant, so I'm best at booking meetings. Try \"Schedule a meeting with Dana tomorrow at 2pm\".",
			"Sorry, I didn't catch that. I can schedule meetings if you tell me who and when.",
		},
	}
}

// LoadDir merges YAML reply packs from dir over the built-in pack.
// A missing directory is not an error.
func LoadDir(dir string, logger *slog.Logger) (*Pack, error) {
	pack := Builtin()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return pack, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replies dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read reply pack", "path", path, "err", err)
			continue
		}

		var extra Pack
		if err := yaml.Unmarshal(data, &extra); err != nil {
			logger.Warn("cannot parse reply pack", "path", path, "err", err)
			continue
		}
		pack.merge(&extra)
		logger.Info("loaded reply pack", "path", path)
	}
	return pack, nil
}

func (p *Pack) merge(extra *Pack) {
	if len(extra.Greeting) > 0 {
		p.Greeting = extra.Greeting
	}
	if len(extra.Thanks) > 0 {
		p.Thanks = extra.Thanks
	}
	if len(extra.Farewell) > 0 {
		p.Farewell = extra.Farewell
	}
	if len(extra.Capabilities) > 0 {
		p.Capabilities = extra.Capabilities
	}
	if len(extra.Fallback) > 0 {
		p.Fallback = extra.Fallback
	}
}

// Lookup classifies the input and returns a canned reply.
// seq makes successive replies in one session rotate through the pack.
func (p *Pack) Lookup(input string, seq int) string {
	lower := strings.ToLower(input)
	var lines []string
	switch {
	case containsAny(lower, "hello", "hi ", "hey") || lower == "hi":
		lines = p.Greeting
	case containsAny(lower, "thank", "thx"):
		lines = p.Thanks
	case containsAny(lower, "bye", "goodbye", "see you"):
		lines = p.Farewell
	case containsAny(lower, "what can you do", "help", "capabilit", "how do you work"):
		lines = p.Capabilities
	default:
		lines = p.Fallback
	}
	if len(lines) == 0 {
		return "I can help you schedule meetings."
	}
	if seq < 0 {
		seq = -seq
	}
	return lines[seq%len(lines)]
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
