package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Record is a single cache entry: a source-specific payload merged with
// learning metadata (source, learned_at, access_count).
type Record map[string]any

// Result is the outcome of a lookup-or-learn operation.
type Result struct {
	Status  LookupStatus
	Source  string
	Data    Record
	Message string
}

// SearchResult is one hit from a free-text relevance search.
type SearchResult struct {
	Key       string
	Relevance string // "high" (key match) or "medium" (value match)
	Data      Record
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Sources      map[string]int `json:"sources"`
	Kinds        map[string]int `json:"types"`
	FileSize     int64          `json:"file_size"`
}

// conversationBuckets bounds the key space for conversation-memory
// entries. Collisions overwrite silently; this is an accepted lossy
// design, not a defect.
const conversationBuckets = 10000

// Cache is the knowledge store. Construct with New; the zero value is
// not usable. The cache is loaded fully into memory at construction and
// rewritten in full to its JSON document on every mutation.
//
// Iteration for containment matching and in-tier search ordering follows
// insertion order, tracked explicitly so behavior does not depend on Go
// map iteration. After a reload from disk, insertion order is the sorted
// key order of the document.
type Cache struct {
	logger *slog.Logger
	path   string

	lookup  Source
	weather WeatherSource
	byName  map[string]configurable

	entries map[string]Record
	order   []string
}

// New creates a knowledge cache backed by the JSON document at path,
// consulting lookup on cache misses. weather may be nil when no weather
// collaborator is available. Load failures are logged and leave the
// cache empty; construction never fails on a corrupt document.
func New(logger *slog.Logger, path string, lookup Source, weather WeatherSource) *Cache {
	c := &Cache{
		logger:  logger,
		path:    path,
		lookup:  lookup,
		weather: weather,
		byName:  make(map[string]configurable),
		entries: make(map[string]Record),
	}

	if cfg, ok := lookup.(configurable); ok {
		c.byName[lookup.Name()] = cfg
	}
	if weather != nil {
		if cfg, ok := weather.(configurable); ok {
			c.byName[weather.Name()] = cfg
		}
	}

	c.load()
	return c
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("created new knowledge base", "path", c.path)
		} else {
			c.logger.Warn("could not read knowledge base", "path", c.path, "error", err)
		}
		return
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.logger.Warn("could not parse knowledge base, starting empty", "path", c.path, "error", err)
		c.entries = make(map[string]Record)
		return
	}

	c.order = make([]string, 0, len(c.entries))
	for key := range c.entries {
		c.order = append(c.order, key)
	}
	sort.Strings(c.order)

	c.logger.Info("knowledge base loaded", "path", c.path, "entries", len(c.entries))
}

// save rewrites the whole document. Failures are logged and the cache
// keeps serving from memory for the rest of the cycle.
func (c *Cache) save() {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.logger.Error("could not create knowledge dir", "path", c.path, "error", err)
		return
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		c.logger.Error("could not encode knowledge base", "error", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.logger.Error("could not write knowledge base", "path", c.path, "error", err)
	}
}

// LookupOrLearn answers a topic query. The cache is checked first by
// exact normalized key, then by containment in either direction (first
// match in insertion order wins). On a miss the external source is
// consulted exactly once; a successful lookup is stored write-through
// before returning.
func (c *Cache) LookupOrLearn(ctx context.Context, query string) Result {
	normalized := strings.ToLower(strings.TrimSpace(query))

	if data := c.find(normalized); data != nil {
		c.logger.Info("knowledge base hit", "query", normalized)
		return Result{
			Status:  LookupSuccess,
			Source:  "knowledge_base",
			Data:    data,
			Message: fmt.Sprintf("I already know about %s. %s", query, summaryOf(data)),
		}
	}

	payload, status := c.lookup.Lookup(ctx, query)
	if status == LookupSuccess {
		c.Store(query, payload, c.lookup.Name())
		return Result{
			Status:  LookupSuccess,
			Source:  c.lookup.Name(),
			Data:    c.entries[normalized],
			Message: fmt.Sprintf("I learned about %s from %s. %s", query, c.lookup.Name(), summaryOf(payload)),
		}
	}

	return Result{
		Status:  LookupNotFound,
		Message: fmt.Sprintf("I couldn't find information about %q. Let me remember this query for future learning.", query),
	}
}

// find implements the two-tier key match: exact first, then containment
// in either direction, scanning in insertion order.
func (c *Cache) find(normalized string) Record {
	if data, ok := c.entries[normalized]; ok {
		return data
	}
	for _, key := range c.order {
		if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
			return c.entries[key]
		}
	}
	return nil
}

// Store writes a payload under the normalized query key, merged with
// source and learning metadata, and persists the document. Storing under
// an existing key overwrites the prior record.
func (c *Cache) Store(query string, payload map[string]any, source string) {
	key := strings.ToLower(strings.TrimSpace(query))

	record := make(Record, len(payload)+3)
	for k, v := range payload {
		record[k] = v
	}
	record["source"] = source
	record["learned_at"] = time.Now().Format(time.RFC3339)
	record["access_count"] = 1

	c.put(key, record)
	c.logger.Info("stored knowledge", "key", key, "source", source)
}

func (c *Cache) put(key string, record Record) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = record
	c.save()
}

// Search performs a case-insensitive containment search across stored
// keys and serialized record content. Key hits rank "high", content hits
// "medium"; high-tier results precede medium-tier, insertion order
// within a tier. At most five results are returned.
func (c *Cache) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	var high, medium []SearchResult

	for _, key := range c.order {
		record := c.entries[key]
		if strings.Contains(key, q) {
			high = append(high, SearchResult{Key: key, Relevance: "high", Data: record})
			continue
		}
		if content, err := json.Marshal(record); err == nil &&
			strings.Contains(strings.ToLower(string(content)), q) {
			medium = append(medium, SearchResult{Key: key, Relevance: "medium", Data: record})
		}
	}

	results := append(high, medium...)
	if len(results) > 5 {
		results = results[:5]
	}
	return results
}

// LearnFromConversation records a user/system exchange under a
// hash-bucketed conversation key. Bucket collisions overwrite silently.
func (c *Cache) LearnFromConversation(userInput, systemResponse string) {
	h := fnv.New32a()
	h.Write([]byte(userInput))
	key := fmt.Sprintf("conversation_%d", h.Sum32()%conversationBuckets)

	c.put(key, Record{
		"user_input":      userInput,
		"system_response": systemResponse,
		"timestamp":       time.Now().Format(time.RFC3339),
		"type":            "conversation",
	})
}

// Weather retrieves a current weather reading for a city and learns it
// under the key "weather_<city>". Returns LookupDisabled when no weather
// collaborator is configured.
func (c *Cache) Weather(ctx context.Context, city string) Result {
	if c.weather == nil {
		return Result{
			Status:  LookupDisabled,
			Message: "Weather lookups are not configured.",
		}
	}

	reading, status := c.weather.Current(ctx, city)
	switch status {
	case LookupSuccess:
		c.Store("weather_"+strings.ToLower(city), reading, c.weather.Name())
		return Result{
			Status:  LookupSuccess,
			Source:  c.weather.Name(),
			Data:    reading,
			Message: fmt.Sprintf("Current weather in %s: %v°C, %v", city, reading["temperature"], reading["description"]),
		}
	case LookupDisabled:
		return Result{
			Status:  LookupDisabled,
			Message: "Weather lookups are not configured. Add an OpenWeatherMap API key.",
		}
	default:
		return Result{
			Status:  LookupNotFound,
			Message: fmt.Sprintf("Weather data not found for %s.", city),
		}
	}
}

// Stats reports entry counts by source and kind, plus the on-disk size
// of the persisted document.
func (c *Cache) Stats() Stats {
	stats := Stats{
		TotalEntries: len(c.entries),
		Sources:      make(map[string]int),
		Kinds:        make(map[string]int),
	}

	for _, record := range c.entries {
		source, _ := record["source"].(string)
		if source == "" {
			source = "unknown"
		}
		kind, _ := record["type"].(string)
		if kind == "" {
			kind = "knowledge"
		}
		stats.Sources[source]++
		stats.Kinds[kind]++
	}

	if fi, err := os.Stat(c.path); err == nil {
		stats.FileSize = fi.Size()
	}
	return stats
}

// ConfigureSource updates connection parameters for a named external
// source. Unknown names are rejected with a warning, not an error.
func (c *Cache) ConfigureSource(name string, opts SourceOptions) {
	src, ok := c.byName[name]
	if !ok {
		c.logger.Warn("unknown knowledge source", "name", name)
		return
	}
	src.configure(opts)
	c.logger.Info("knowledge source configured", "name", name)
}

// summaryOf extracts a short display string from a payload, preferring
// the summary field and falling back to the extract.
func summaryOf(data map[string]any) string {
	for _, field := range []string{"summary", "extract"} {
		if s, ok := data[field].(string); ok && s != "" {
			return truncate(s, 200)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
