// Package session tracks the assistant's operating context: the current
// mode, device connectivity, user preferences, and a bounded conversation
// history. It is the single place the decision engine reads and mutates
// state, and it persists the durable subset (preferences and device
// states) to a JSON document on request.
//
// The store is designed for single-threaded synchronous use; callers that
// invoke it from concurrent request handlers must serialize mutations
// externally.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Mode is an operating mode. Only the declared modes are accepted; any
// other value is rejected without changing state.
type Mode string

const (
	ModeHome    Mode = "home"
	ModeDefense Mode = "defense"
	ModeNight   Mode = "night"
	ModeManual  Mode = "manual"
)

// Modes lists the valid operating modes in declaration order.
var Modes = []Mode{ModeHome, ModeDefense, ModeNight, ModeManual}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// Entry is a single conversation history record. Payload is free-form;
// the store only stamps and bounds entries, it never interprets them.
type Entry struct {
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// historyLimit bounds conversation history to the most recent entries.
// Eviction is FIFO: the oldest entry is dropped first.
const historyLimit = 100

// Info is a derived view of the current session.
type Info struct {
	SessionStart      time.Time     `json:"session_start"`
	SessionDuration   time.Duration `json:"session_duration"`
	LastActivity      time.Time     `json:"last_activity"`
	Mode              Mode          `json:"current_mode"`
	CommandsProcessed int           `json:"commands_processed"`
}

// Summary aggregates the context for status-style responses.
type Summary struct {
	Mode             Mode                      `json:"mode"`
	Session          Info                      `json:"session_info"`
	DeviceStates     map[string]map[string]any `json:"device_states"`
	SystemHealth     string                    `json:"system_health"`
	ActiveComponents []string                  `json:"active_components"`
}

// Store holds all session state. Construct with New; the zero value is
// not usable.
type Store struct {
	logger *slog.Logger
	path   string

	mode         Mode
	systemState  map[string]map[string]any
	history      []Entry
	preferences  map[string]any
	deviceStates map[string]map[string]any

	sessionStart time.Time
	lastActivity time.Time
}

// persisted is the on-disk document layout: only preferences and device
// states survive restarts. History and system state are ephemeral.
type persisted struct {
	UserPreferences map[string]any            `json:"user_preferences"`
	DeviceStates    map[string]map[string]any `json:"device_states"`
	LastSaved       string                    `json:"last_saved"`
}

// New creates a session store backed by the JSON document at path. The
// registered device set is fixed: trinetra (ground unit) and krait3
// (aerial unit). If a document exists at path it is loaded; any load
// failure is logged and ignored so that startup never fails on a
// corrupt context file.
func New(logger *slog.Logger, path string) *Store {
	now := time.Now()
	s := &Store{
		logger:      logger,
		path:        path,
		mode:        ModeHome,
		systemState: make(map[string]map[string]any),
		preferences: make(map[string]any),
		deviceStates: map[string]map[string]any{
			"trinetra": {"connected": false, "status": "offline"},
			"krait3":   {"connected": false, "status": "offline"},
		},
		sessionStart: now,
		lastActivity: now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read context document", "path", s.path, "error", err)
		}
		return
	}

	var doc persisted
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("could not parse context document, using defaults", "path", s.path, "error", err)
		return
	}

	if doc.UserPreferences != nil {
		s.preferences = doc.UserPreferences
	}
	// Only restore states for registered devices; the device set is
	// closed and the document must not widen it.
	for device, state := range doc.DeviceStates {
		if _, ok := s.deviceStates[device]; ok {
			s.deviceStates[device] = state
		}
	}
	s.logger.Info("context loaded", "path", s.path)
}

// Save writes user preferences and device states to the context
// document. The parent directory is created if needed. Failures are
// returned but leave the in-memory state fully usable.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	doc := persisted{
		UserPreferences: s.preferences,
		DeviceStates:    s.deviceStates,
		LastSaved:       time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write context: %w", err)
	}

	s.logger.Debug("context saved", "path", s.path)
	return nil
}

// SetMode switches the operating mode. Invalid modes are rejected with
// a warning and no state change; the return value reports acceptance.
func (s *Store) SetMode(mode Mode) bool {
	if !mode.Valid() {
		s.logger.Warn("invalid mode rejected", "mode", mode)
		return false
	}
	s.mode = mode
	s.touch()
	s.logger.Info("mode changed", "mode", mode)
	return true
}

// Mode returns the current operating mode.
func (s *Store) Mode() Mode {
	return s.mode
}

// UpdateSystemState merges a partial state into the named component's
// record, stamping last_updated. Components are an open set; unknown
// names create a new record.
func (s *Store) UpdateSystemState(component string, state map[string]any) {
	merged := make(map[string]any, len(state)+1)
	for k, v := range state {
		merged[k] = v
	}
	merged["last_updated"] = time.Now().Format(time.RFC3339)
	s.systemState[component] = merged
	s.touch()
}

// SystemState returns the record for one component. A component with no
// recorded state yields an empty map, never an error.
func (s *Store) SystemState(component string) map[string]any {
	if state, ok := s.systemState[component]; ok {
		return state
	}
	return map[string]any{}
}

// AllSystemState returns the full component→state mapping.
func (s *Store) AllSystemState() map[string]map[string]any {
	return s.systemState
}

// AddConversationEntry appends a timestamped entry to the conversation
// history, evicting the oldest entry once the bound is exceeded.
func (s *Store) AddConversationEntry(payload map[string]any) {
	s.history = append(s.history, Entry{Payload: payload, Timestamp: time.Now()})
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.touch()
}

// ConversationHistory returns the most recent limit entries, oldest
// first. A non-positive limit defaults to 10.
func (s *Store) ConversationHistory(limit int) []Entry {
	if limit <= 0 {
		limit = 10
	}
	if limit > len(s.history) {
		limit = len(s.history)
	}
	return s.history[len(s.history)-limit:]
}

// UpdateDeviceState merges a partial state into a registered device's
// record, stamping last_updated. The device set is closed: updates for
// unregistered identifiers are silently ignored.
func (s *Store) UpdateDeviceState(device string, state map[string]any) {
	existing, ok := s.deviceStates[device]
	if !ok {
		s.logger.Debug("ignoring state update for unregistered device", "device", device)
		return
	}
	for k, v := range state {
		existing[k] = v
	}
	existing["last_updated"] = time.Now().Format(time.RFC3339)
	s.logger.Info("device state updated", "device", device)
	s.touch()
}

// DeviceState returns the record for a device, or an empty map if the
// device is not registered.
func (s *Store) DeviceState(device string) map[string]any {
	if state, ok := s.deviceStates[device]; ok {
		return state
	}
	return map[string]any{}
}

// IsDeviceConnected reports the connected flag of a device's record.
// Unregistered devices are never connected.
func (s *Store) IsDeviceConnected(device string) bool {
	connected, _ := s.deviceStates[device]["connected"].(bool)
	return connected
}

// SetPreference stores a user preference.
func (s *Store) SetPreference(key string, value any) {
	s.preferences[key] = value
	s.logger.Debug("preference set", "key", key)
	s.touch()
}

// Preference returns the stored value for key, or def if unset.
func (s *Store) Preference(key string, def any) any {
	if v, ok := s.preferences[key]; ok {
		return v
	}
	return def
}

// SessionInfo returns the derived session view.
func (s *Store) SessionInfo() Info {
	now := time.Now()
	return Info{
		SessionStart:      s.sessionStart,
		SessionDuration:   now.Sub(s.sessionStart),
		LastActivity:      s.lastActivity,
		Mode:              s.mode,
		CommandsProcessed: len(s.history),
	}
}

// ContextSummary aggregates mode, session info, device states, a coarse
// health classification, and the components with recorded system state.
func (s *Store) ContextSummary() Summary {
	components := make([]string, 0, len(s.systemState))
	for name := range s.systemState {
		components = append(components, name)
	}

	return Summary{
		Mode:             s.mode,
		Session:          s.SessionInfo(),
		DeviceStates:     s.deviceStates,
		SystemHealth:     s.systemHealth(),
		ActiveComponents: components,
	}
}

// systemHealth classifies overall health by device connectivity:
// excellent when every registered device is connected, good when at
// least one is, limited when none are.
func (s *Store) systemHealth() string {
	connected := 0
	for _, state := range s.deviceStates {
		if c, _ := state["connected"].(bool); c {
			connected++
		}
	}
	switch {
	case connected == len(s.deviceStates):
		return "excellent"
	case connected > 0:
		return "good"
	default:
		return "limited"
	}
}

// CleanupOldData drops conversation entries older than 24 hours,
// judged by each entry's own timestamp. Invoked by an external
// scheduler; the store owns no timers.
func (s *Store) CleanupOldData() {
	cutoff := time.Now().Add(-24 * time.Hour)
	kept := s.history[:0]
	for _, e := range s.history {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	s.history = kept
	s.logger.Info("cleaned up old context data", "remaining", len(s.history))
}

// ResetSession clears the conversation history and resets both session
// timers. Device states and preferences are untouched.
func (s *Store) ResetSession() {
	s.history = nil
	now := time.Now()
	s.sessionStart = now
	s.lastActivity = now
	s.logger.Info("session reset")
}

func (s *Store) touch() {
	s.lastActivity = time.Now()
}
