// Package engine implements the decision engine: the request/response
// pipeline that turns free-text commands into structured responses.
//
// Each command flows through normalization, ordered first-match intent
// classification, entity extraction, and a per-domain handler. Handlers
// read and mutate the session store and consult the knowledge cache for
// open-domain questions. The engine is a hard error boundary: every
// call returns a well-formed [Response], and no panic crosses
// [Engine.ProcessCommand].
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vegalabs/vega/internal/audit"
	"github.com/vegalabs/vega/internal/knowledge"
	"github.com/vegalabs/vega/internal/session"
)

// defaultCity is used for weather queries that name no city.
const defaultCity = "London"

// Auditor persists processed-command records for later learning and
// audit. [audit.Store] is the production implementation.
type Auditor interface {
	Record(i audit.Interaction) error
}

// Entities are the structured values extracted from a command,
// independent of its classified intent.
type Entities struct {
	Numbers     []int
	Directions  []string
	Coordinates [][2]float64
}

// Engine is the decision engine. Construct with New; the hosting
// process owns the session store and knowledge cache and passes them
// in (no package-level singletons).
type Engine struct {
	logger   *slog.Logger
	session  *session.Store
	cache    *knowledge.Cache
	auditor  Auditor
	rules    []rule
	city     string
	learning bool
}

// New creates a decision engine. auditor may be nil, in which case
// processed commands are only logged, not durably recorded.
func New(logger *slog.Logger, sess *session.Store, cache *knowledge.Cache, auditor Auditor) *Engine {
	return &Engine{
		logger:   logger,
		session:  sess,
		cache:    cache,
		auditor:  auditor,
		rules:    defaultRules(),
		city:     defaultCity,
		learning: true,
	}
}

// SetDefaultCity overrides the fallback city for weather queries.
func (e *Engine) SetDefaultCity(city string) {
	if city != "" {
		e.city = city
	}
}

// SetLearning enables or disables the learning step (audit recording
// and conversation memory).
func (e *Engine) SetLearning(enabled bool) {
	e.learning = enabled
	e.logger.Info("learning mode changed", "enabled", enabled)
}

// ProcessCommand runs the full pipeline for one command. It always
// returns a well-formed response; any panic inside the pipeline is
// converted to a StatusError response at this boundary.
func (e *Engine) ProcessCommand(ctx context.Context, text string) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("command processing panicked", "command", text, "panic", r)
			resp = Response{
				Status:    StatusError,
				Message:   "Command processing failed",
				Error:     fmt.Sprint(r),
				Timestamp: time.Now(),
			}
		}
	}()

	e.logger.Info("processing command", "command", text)

	normalized := Normalize(text)
	intent := e.classify(normalized)
	// Entities come from the raw text: normalization strips the commas
	// that coordinate pairs depend on.
	entities := ExtractEntities(strings.ToLower(text))

	resp = e.dispatch(ctx, intent, entities, normalized)
	resp.Intent = intent

	if e.learning {
		e.logInteraction(text, intent, resp)
	}
	return resp
}

// Normalize lower-cases the text, collapses whitespace runs, and strips
// every character other than word characters, whitespace, hyphen, and
// period.
func Normalize(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	return strippedChars.ReplaceAllString(normalized, "")
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	strippedChars = regexp.MustCompile(`[^\w\s\-.]`)

	numberPattern    = regexp.MustCompile(`\d+`)
	directionPattern = regexp.MustCompile(`(?:forward|backward|left|right|up|down|north|south|east|west)`)
	coordPattern     = regexp.MustCompile(`(-?\d+\.?\d*),\s*(-?\d+\.?\d*)`)
)

// classify evaluates the ordered rule list and returns the first domain
// with a matching pattern. Unmatched commands fall to the general
// domain.
func (e *Engine) classify(normalized string) string {
	for _, r := range e.rules {
		for _, p := range r.patterns {
			if p.MatchString(normalized) {
				e.logger.Debug("intent matched", "domain", r.domain)
				return r.domain
			}
		}
	}
	return DomainGeneral
}

// ExtractEntities pulls numbers, direction tokens, and coordinate pairs
// out of lower-cased text. Extraction is independent of the classified
// intent.
func ExtractEntities(text string) Entities {
	var ents Entities

	for _, m := range numberPattern.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			ents.Numbers = append(ents.Numbers, n)
		}
	}

	ents.Directions = directionPattern.FindAllString(text, -1)

	for _, m := range coordPattern.FindAllStringSubmatch(text, -1) {
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			ents.Coordinates = append(ents.Coordinates, [2]float64{lat, lon})
		}
	}

	return ents
}

// dispatch routes to the handler for the classified domain. Domains
// added via AddPattern without a handler get the unknown response.
func (e *Engine) dispatch(ctx context.Context, intent string, ents Entities, cmd string) Response {
	switch intent {
	case DomainSystem:
		return e.handleSystemControl(cmd)
	case DomainTrinetra:
		return e.handleTrinetraControl(ents, cmd)
	case DomainKrait3:
		return e.handleKrait3Control(ents, cmd)
	case DomainVoice:
		return e.handleVoiceControl(cmd)
	case DomainGeneral:
		return e.handleGeneral(ctx, cmd)
	default:
		return Response{
			Status:     StatusUnknown,
			Message:    "Intent not recognized",
			Suggestion: "Try asking for help or status",
			Timestamp:  time.Now(),
		}
	}
}

// logInteraction records a processed command for later learning/audit.
// Recording failures are logged and never surfaced to the caller.
func (e *Engine) logInteraction(command, intent string, resp Response) {
	if e.auditor == nil {
		e.logger.Debug("interaction", "command", command, "intent", intent, "action", resp.Action, "status", resp.Status)
		return
	}

	err := e.auditor.Record(audit.Interaction{
		ID:        uuid.NewString(),
		Command:   command,
		Intent:    intent,
		Action:    resp.Action,
		Status:    string(resp.Status),
		Timestamp: time.Now(),
	})
	if err != nil {
		e.logger.Warn("could not record interaction", "error", err)
	}
}
