package channels

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yml
var defaultRules []byte

// RuleSet is the document form of the attribution rules
type RuleSet struct {
	PaidMedium string       `yaml:"paid_medium"`
	Search     CategorySpec `yaml:"search"`
	Social     CategorySpec `yaml:"social"`
	Email      CategorySpec `yaml:"email"`
	Shopping   CategorySpec `yaml:"shopping"`
	Video      CategorySpec `yaml:"video"`
	PaidAds    []RuleSpec   `yaml:"paid_ads"`
	Affiliate  string       `yaml:"affiliate"`
	SMS        string       `yaml:"sms"`
}

// CategorySpec lists the referrer domains and the query pattern of a channel category
type CategorySpec struct {
	Domains []string `yaml:"domains"`
	Pattern string   `yaml:"pattern"`
}

// RuleSpec is a single query rule: either a literal or a pattern
type RuleSpec struct {
	Contains string `yaml:"contains"`
	Pattern  string `yaml:"pattern"`
}

// Rule tests a candidate string against a literal substring or a compiled pattern.
type Rule struct {
	literal string
	source  string
	pattern *pcre.Regexp
}

// Literal returns a rule matching candidates that contain s.
func Literal(s string) Rule {
	return Rule{literal: s}
}

// Match reports whether candidate satisfies the rule. Empty candidates never match.
func (r Rule) Match(candidate string) bool {
	if candidate == "" {
		return false
	}
	if r.pattern != nil {
		return r.pattern.MatchString(candidate)
	}
	return r.literal != "" && strings.Contains(candidate, r.literal)
}

// String returns the literal or the pattern source
func (r Rule) String() string {
	if r.pattern != nil {
		return r.source
	}
	return r.literal
}

// Compiled pattern cache, shared by every rule set loaded in the process
type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

var patterns = &regexCache{compiled: make(map[string]*pcre.Regexp)}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Pattern returns a rule matching candidates in which expr matches anywhere.
func Pattern(expr string) (Rule, error) {
	regex, err := patterns.get(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling pattern %q: %w", expr, err)
	}
	return Rule{source: expr, pattern: regex}, nil
}

// ParseRuleSet decodes a YAML rule set document.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing channel rules: %w", err)
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// DefaultRuleSet returns the embedded rule set.
func DefaultRuleSet() *RuleSet {
	rs, err := ParseRuleSet(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("channels: embedded rules.yml is invalid: %v", err))
	}
	return rs
}

// LoadRuleSetFile reads a rule set from a YAML file.
func LoadRuleSetFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading channel rules: %w", err)
	}
	return ParseRuleSet(data)
}

func (rs *RuleSet) validate() error {
	required := map[string]string{
		"paid_medium":      rs.PaidMedium,
		"search.pattern":   rs.Search.Pattern,
		"social.pattern":   rs.Social.Pattern,
		"email.pattern":    rs.Email.Pattern,
		"shopping.pattern": rs.Shopping.Pattern,
		"video.pattern":    rs.Video.Pattern,
		"affiliate":        rs.Affiliate,
		"sms":              rs.SMS,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("channel rules: %s is required", key)
		}
	}
	for i, spec := range rs.PaidAds {
		if (spec.Contains == "") == (spec.Pattern == "") {
			return fmt.Errorf("channel rules: paid_ads[%d] must set exactly one of contains or pattern", i)
		}
	}
	return nil
}

func compileLiterals(domains []string) []Rule {
	rules := make([]Rule, 0, len(domains))
	for _, domain := range domains {
		if domain != "" {
			rules = append(rules, Literal(domain))
		}
	}
	return rules
}

func compileSpecs(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if spec.Pattern != "" {
			rule, err := Pattern(spec.Pattern)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
			continue
		}
		rules = append(rules, Literal(spec.Contains))
	}
	return rules, nil
}

func matchAny(rules []Rule, candidate string) bool {
	for _, rule := range rules {
		if rule.Match(candidate) {
			return true
		}
	}
	return false
}
