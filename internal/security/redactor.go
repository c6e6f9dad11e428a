// Package security keeps credentials out of log output.
package security

import (
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RedactPlaceholder replaces every redacted value.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches configuration keys whose values are credentials.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|pass|credential)`)

// Redactor replaces known secret values and credential-shaped substrings.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddLiteral registers a value to redact wherever it appears. Empty
// strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// AddConfigSecrets registers every credential found in a module config node.
func (r *Redactor) AddConfigSecrets(node *yaml.Node) {
	for _, s := range ConfigSecrets(node) {
		r.AddLiteral(s)
	}
}

// Redact returns s with every pattern match and literal replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns matches credentials carried in HTTP Authorization values.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`),
		regexp.MustCompile(`(?i)basic\s+[A-Za-z0-9+/]+=*`),
	}
}

// ConfigSecrets walks a YAML node and returns the scalar values stored under
// credential-named keys, at any depth.
func ConfigSecrets(node *yaml.Node) []string {
	if node == nil {
		return nil
	}
	var out []string
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			out = append(out, ConfigSecrets(child)...)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind == yaml.ScalarNode && secretKeyPattern.MatchString(key.Value) {
				if value.Value != "" {
					out = append(out, value.Value)
				}
				continue
			}
			out = append(out, ConfigSecrets(value)...)
		}
	}
	return out
}
