// Package phrase provides normalized phrase matching with a
// rejection filter, shared by the wake-word and cancel-phrase
// detectors.
package phrase

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\w\s]`)

// Normalize lowercases text and strips punctuation, matching the
// wake-word analysis step's "normalize the returned text" contract.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	stripped := punctuation.ReplaceAllString(lower, "")
	return strings.Join(strings.Fields(stripped), " ")
}

// Matcher matches normalized transcription text against a set of
// target phrases, subject to a false-positive rejection filter.
type Matcher struct {
	targets    []string
	rejections []string
}

// New builds a Matcher for the given target phrases and rejection
// exemplars (negative matches that would otherwise fire on a target
// phrase substring, e.g. "hey matt" rejecting "hey cat").
func New(targets, rejections []string) *Matcher {
	m := &Matcher{}
	for _, t := range targets {
		m.targets = append(m.targets, Normalize(t))
	}
	for _, r := range rejections {
		m.rejections = append(m.rejections, Normalize(r))
	}
	return m
}

// Match reports whether the normalized text contains a target phrase
// and is not also caught by the rejection filter. Returns the matched
// target (for confidence/logging purposes) and whether it matched.
func (m *Matcher) Match(text string) (target string, matched bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return "", false
	}

	// Rejection exemplars are whole-utterance negatives (e.g. "hey"
	// alone must not trigger on the "hey cat" target's leading word),
	// so they're matched by equality, not substring containment.
	for _, rej := range m.rejections {
		if normalized == rej {
			return "", false
		}
	}

	for _, t := range m.targets {
		if strings.Contains(normalized, t) {
			return t, true
		}
	}
	return "", false
}

// WakeWordTargets is the default wake phrase set.
var WakeWordTargets = []string{"hey cat", "hi cat", "hey kat"}

// WakeWordRejections are negative exemplars that must not trigger
// wake-word detection even though they share a trailing/leading
// token with a target phrase.
var WakeWordRejections = []string{"hey matt", "pay cat", "hey"}

// CancelTargets is the default cancel-phrase set.
var CancelTargets = []string{"cancel", "nevermind", "never mind", "nvm"}

// CancelRejections are negative exemplars for the cancel phrase set.
var CancelRejections = []string{"can't sell", "can sell"}
