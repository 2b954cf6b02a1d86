// Package conversation turns console input into actions on the
// announcement queue.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// Compile-time interface check.
var _ domain.IntentParser = (*KeywordParser)(nil)

// KeywordParser matches console input to intents using keywords and
// simple patterns.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(stop|silence|hush|quiet|shh|x)$`), domain.IntentSilence},
		{regexp.MustCompile(`(?i)^(repeat|again|what\??|r|say that again|come again)$`), domain.IntentRepeatLast},
		{regexp.MustCompile(`(?i)^(status|info|where)$`), domain.IntentStatus},
		{regexp.MustCompile(`(?i)^(quit|exit|q)$`), domain.IntentQuit},
		{regexp.MustCompile(`(?i)^(help|h|\?)$`), domain.IntentHelp},
		// Payload intents: the captured text is spoken verbatim.
		{regexp.MustCompile(`(?i)^(?:say|speak)\s+(.+)$`), domain.IntentSay},
		{regexp.MustCompile(`(?i)^(?:alert|urgent|!)\s*(.+)$`), domain.IntentAlert},
	}
	return p
}

// Parse converts console input into an intent.
func (p *KeywordParser) Parse(ctx context.Context, input string) (*domain.Intent, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	for _, rule := range p.patterns {
		m := rule.regex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		p.log.Debug("matched intent: %s", rule.intent)
		if rule.intent == domain.IntentSay || rule.intent == domain.IntentAlert {
			return &domain.Intent{Type: rule.intent, Payload: strings.TrimSpace(m[1])}, nil
		}
		return &domain.Intent{Type: rule.intent}, nil
	}

	p.log.Debug("no match, returning unknown intent")
	return &domain.Intent{Type: domain.IntentUnknown, Payload: trimmed}, nil
}
