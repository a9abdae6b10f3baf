// Package classify implements ordered pattern-based error classification.
//
// A Classifier works in two stages. First the message must be recognized as
// error-shaped by one of the name patterns, which also extract a fallback
// type label. Only then is the ordered rule list consulted; the first
// matching rule wins. Messages recognized by the name patterns but matched
// by no rule are classified UNKNOWN with the extracted label.
package classify

import (
	"regexp"
	"strings"

	"github.com/indexity-io/orientdb-stress/types"
)

// Rule is one immutable classification rule: a matcher with the class and
// label to assign when it matches. Rules are evaluated in declaration order.
type Rule struct {
	// Class is the classification assigned on match.
	Class types.Classification

	// Label names the error type for reporting.
	Label string

	// Matcher is the compiled pattern tested against the full message.
	Matcher *regexp.Regexp
}

// NewRule creates a Rule from a pattern string.
//
// The pattern is compiled in multi-line mode with "." matching newlines,
// since collated log messages span multiple lines.
//
// Parameters:
//   - class: Classification to assign on match
//   - label: Error type label for reporting
//   - pattern: Regular expression tested against the message
//
// Returns:
//   - Rule: The compiled rule
func NewRule(class types.Classification, label, pattern string) Rule {
	return Rule{
		Class:   class,
		Label:   label,
		Matcher: regexp.MustCompile("(?ms)" + pattern),
	}
}

// Classifier classifies raw error messages using an ordered rule list.
//
// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules        []Rule
	namePatterns []*regexp.Regexp
}

// New creates a Classifier.
//
// Parameters:
//   - rules: Ordered classification rules, first match wins
//   - namePatterns: Patterns that gate classification and extract a type
//     label for otherwise-unmatched messages
//
// Returns:
//   - *Classifier: The classifier
func New(rules []Rule, namePatterns []*regexp.Regexp) *Classifier {
	return &Classifier{rules: rules, namePatterns: namePatterns}
}

// Classify classifies a message.
//
// Identical input always yields identical output. A message not recognized
// by any name pattern is not an error at all and returns ok=false.
//
// Parameters:
//   - message: Raw, possibly multi-line message text
//
// Returns:
//   - types.Classification: Assigned class (meaningless when ok is false)
//   - string: Error type label
//   - bool: false if the message is not recognized as an error
func (c *Classifier) Classify(message string) (types.Classification, string, bool) {
	var fallback string
	found := false
	for _, np := range c.namePatterns {
		m := np.FindStringSubmatch(message)
		if m != nil {
			fallback = strings.Join(m[1:], "_")
			found = true
			break
		}
	}

	if !found {
		return types.ClassUnknown, "", false
	}

	for _, rule := range c.rules {
		if rule.Matcher.MatchString(message) {
			return rule.Class, rule.Label, true
		}
	}

	return types.ClassUnknown, fallback, true
}
