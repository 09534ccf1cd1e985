package classification

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// CategoryKeywords is one evidence category and its trigger keywords
type CategoryKeywords struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// KeywordTables is the raw, serializable form of the classifier's data
type KeywordTables struct {
	ExclusionKeywords []string           `yaml:"exclusion_keywords"`
	BookingIndicators []string           `yaml:"booking_indicators"`
	Categories        []CategoryKeywords `yaml:"categories"`
	EvidencePatterns  []string           `yaml:"evidence_patterns"`
}

// KeywordBank holds lower-cased keyword tables and compiled evidence patterns.
// Order in every table is significant: the first hit wins.
type KeywordBank struct {
	exclusions []string
	indicators []string
	categories []CategoryKeywords
	evidence   []*regexp.Regexp
	sources    []string
}

// DefaultKeywordBank returns the embedded tables. It panics only if the
// embedded YAML is broken, which is a build defect.
func DefaultKeywordBank() *KeywordBank {
	bank, err := ParseKeywordBank(defaultKeywordsYAML)
	if err != nil {
		panic(fmt.Sprintf("classification: embedded keywords.yaml: %v", err))
	}
	return bank
}

// LoadKeywordBank reads tables from path, or the embedded defaults when path is empty
func LoadKeywordBank(path string) (*KeywordBank, error) {
	if path == "" {
		return DefaultKeywordBank(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}
	return ParseKeywordBank(data)
}

// ParseKeywordBank decodes YAML tables and compiles them
func ParseKeywordBank(data []byte) (*KeywordBank, error) {
	var tables KeywordTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse keyword tables: %w", err)
	}
	return NewKeywordBank(tables)
}

// NewKeywordBank compiles tables. Every table must be non-empty.
func NewKeywordBank(t KeywordTables) (*KeywordBank, error) {
	if len(t.ExclusionKeywords) == 0 {
		return nil, fmt.Errorf("keyword tables: exclusion_keywords is empty")
	}
	if len(t.BookingIndicators) == 0 {
		return nil, fmt.Errorf("keyword tables: booking_indicators is empty")
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("keyword tables: categories is empty")
	}
	if len(t.EvidencePatterns) == 0 {
		return nil, fmt.Errorf("keyword tables: evidence_patterns is empty")
	}

	bank := &KeywordBank{
		exclusions: lowerAll(t.ExclusionKeywords),
		indicators: lowerAll(t.BookingIndicators),
	}
	for _, c := range t.Categories {
		if c.Name == "" || len(c.Keywords) == 0 {
			return nil, fmt.Errorf("keyword tables: category %q has no keywords", c.Name)
		}
		bank.categories = append(bank.categories, CategoryKeywords{Name: c.Name, Keywords: lowerAll(c.Keywords)})
	}
	for _, p := range t.EvidencePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("keyword tables: evidence pattern %q: %w", p, err)
		}
		bank.evidence = append(bank.evidence, re)
		bank.sources = append(bank.sources, p)
	}
	return bank, nil
}

// Categories returns the category table in evaluation order
func (b *KeywordBank) Categories() []CategoryKeywords {
	out := make([]CategoryKeywords, len(b.categories))
	copy(out, b.categories)
	return out
}

// firstContained returns the first keyword found in any of the lower-cased haystacks
func firstContained(keywords []string, haystacks ...string) (string, bool) {
	for _, kw := range keywords {
		for _, h := range haystacks {
			if strings.Contains(h, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// firstEvidence returns the source of the first evidence pattern matching body
func (b *KeywordBank) firstEvidence(body string) (string, bool) {
	for i, re := range b.evidence {
		if re.MatchString(body) {
			return b.sources[i], true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
