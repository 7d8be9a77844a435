package engine

import (
	"fmt"
	"regexp"
)

// Domain names. Declaration order is a contract: classification
// evaluates domains in the order they appear in defaultRules, and the
// first domain with a matching pattern wins.
const (
	DomainSystem   = "system_control"
	DomainTrinetra = "trinetra_control"
	DomainKrait3   = "krait3_control"
	DomainVoice    = "voice_control"
	DomainGeneral  = "general"
)

// rule is one domain's ordered match-pattern list.
type rule struct {
	domain   string
	patterns []*regexp.Regexp
}

// defaultRules returns the built-in classification rules. The slice
// order (not a map) carries the first-match tie-break; do not reorder
// without intending a behavior change.
func defaultRules() []rule {
	return []rule{
		{
			domain: DomainSystem,
			patterns: compileAll(
				`(?:status|health|system|check)`,
				`(?:temperature|cpu|memory|disk)`,
				`(?:mode|switch|change).+(?:defense|home|night|manual)`,
			),
		},
		{
			domain: DomainTrinetra,
			patterns: compileAll(
				`(?:trinetra|ground|bot|ugv)`,
				`(?:move|forward|backward|left|right|stop)`,
				`(?:camera|stream|snapshot|record)`,
				`(?:patrol|scout|search)`,
				`(?:sensor|gas|fire|motion)`,
			),
		},
		{
			domain: DomainKrait3,
			patterns: compileAll(
				`(?:krait|uav|drone|air|fly)`,
				`(?:launch|takeoff|land|hover|return)`,
				`(?:altitude|height|up|down)`,
				`(?:waypoint|navigate|goto|coordinates)`,
				`(?:mission|reconnaissance|surveillance)`,
			),
		},
		{
			domain: DomainVoice,
			patterns: compileAll(
				`(?:listen|start|voice|speech)`,
				`(?:stop|quiet|silence)`,
				`(?:repeat|say|speak)`,
				`(?:volume|loud|quiet)`,
			),
		},
		{
			domain: DomainGeneral,
			patterns: compileAll(
				`(?:hello|hi|hey|greetings)`,
				`(?:help|assist|support)`,
				`(?:thank|thanks)`,
				`(?:goodbye|bye|exit|quit)`,
			),
		},
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// AddPattern appends a match pattern to a domain's ordered list,
// creating the domain at the end of the evaluation order if it does
// not exist yet. Invalid patterns are rejected.
func (e *Engine) AddPattern(domain, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("add pattern for %s: %w", domain, err)
	}

	for i := range e.rules {
		if e.rules[i].domain == domain {
			e.rules[i].patterns = append(e.rules[i].patterns, re)
			e.logger.Info("added custom pattern", "domain", domain, "pattern", pattern)
			return nil
		}
	}

	e.rules = append(e.rules, rule{domain: domain, patterns: []*regexp.Regexp{re}})
	e.logger.Info("added custom pattern", "domain", domain, "pattern", pattern)
	return nil
}
