package knowledge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// stubSource is a call-counting lookup collaborator.
type stubSource struct {
	name    string
	calls   int
	payload map[string]any
	status  LookupStatus
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Lookup(ctx context.Context, topic string) (map[string]any, LookupStatus) {
	s.calls++
	return s.payload, s.status
}

// stubWeather is a call-counting weather collaborator.
type stubWeather struct {
	calls   int
	reading map[string]any
	status  LookupStatus
}

func (s *stubWeather) Name() string { return "openweather" }

func (s *stubWeather) Current(ctx context.Context, city string) (map[string]any, LookupStatus) {
	s.calls++
	return s.reading, s.status
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, src Source) *Cache {
	t.Helper()
	return New(testLogger(), filepath.Join(t.TempDir(), "knowledge_base.json"), src, nil)
}

func TestStoreThenLookup_HitsCacheWithoutCollaborator(t *testing.T) {
	src := &stubSource{name: "wikipedia", status: LookupNotFound}
	c := newTestCache(t, src)

	c.Store("Photosynthesis", map[string]any{"summary": "how plants eat light"}, "wikipedia")

	result := c.LookupOrLearn(context.Background(), "photosynthesis")
	if result.Status != LookupSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if result.Source != "knowledge_base" {
		t.Errorf("source = %q, want knowledge_base", result.Source)
	}
	if _, ok := result.Data["access_count"]; !ok {
		t.Error("cached record missing access_count metadata")
	}
	if src.calls != 0 {
		t.Errorf("external collaborator called %d times, want 0", src.calls)
	}
}

func TestLookupOrLearn_MissLearnsAndCaches(t *testing.T) {
	src := &stubSource{
		name:    "wikipedia",
		payload: map[string]any{"title": "Photosynthesis", "summary": "light into sugar"},
		status:  LookupSuccess,
	}
	c := newTestCache(t, src)

	first := c.LookupOrLearn(context.Background(), "photosynthesis")
	if first.Status != LookupSuccess {
		t.Fatalf("status = %q, want success", first.Status)
	}
	if first.Source != "wikipedia" {
		t.Errorf("first source = %q, want wikipedia", first.Source)
	}
	if src.calls != 1 {
		t.Fatalf("collaborator calls = %d, want 1", src.calls)
	}

	second := c.LookupOrLearn(context.Background(), "photosynthesis")
	if second.Source != "knowledge_base" {
		t.Errorf("second source = %q, want knowledge_base", second.Source)
	}
	if src.calls != 1 {
		t.Errorf("collaborator calls after cached query = %d, want 1", src.calls)
	}
}

func TestLookupOrLearn_NotFoundStoresNothing(t *testing.T) {
	src := &stubSource{name: "wikipedia", status: LookupNotFound}
	c := newTestCache(t, src)

	result := c.LookupOrLearn(context.Background(), "zyzzyvology")
	if result.Status != LookupNotFound {
		t.Fatalf("status = %q, want not_found", result.Status)
	}
	if got := c.Stats().TotalEntries; got != 0 {
		t.Errorf("entries after not_found = %d, want 0", got)
	}
}

func TestLookupOrLearn_ContainmentBothDirections(t *testing.T) {
	src := &stubSource{name: "wikipedia", status: LookupNotFound}
	c := newTestCache(t, src)
	c.Store("paris weather", map[string]any{"summary": "mild"}, "openweather")

	// Query is a substring of the stored key.
	if r := c.LookupOrLearn(context.Background(), "paris"); r.Source != "knowledge_base" {
		t.Errorf("substring query missed: status=%q source=%q", r.Status, r.Source)
	}
	// Stored key is a substring of the query.
	if r := c.LookupOrLearn(context.Background(), "what about paris weather today"); r.Source != "knowledge_base" {
		t.Errorf("superstring query missed: status=%q source=%q", r.Status, r.Source)
	}
	if src.calls != 0 {
		t.Errorf("collaborator called %d times on containment hits", src.calls)
	}
}

func TestStore_OverwritesSameKey(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	c.Store("mars", map[string]any{"summary": "red"}, "wikipedia")
	c.Store("mars", map[string]any{"summary": "very red"}, "wikipedia")

	stats := c.Stats()
	if stats.TotalEntries != 1 {
		t.Fatalf("entries = %d, want 1 (overwrite, not append)", stats.TotalEntries)
	}
	result := c.LookupOrLearn(context.Background(), "mars")
	if got := result.Data["summary"]; got != "very red" {
		t.Errorf("summary = %v, want the overwritten value", got)
	}
}

func TestSearch_RelevanceTiers(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	c.Store("paris weather", map[string]any{"summary": "rainy this week"}, "openweather")
	c.Store("french cuisine", map[string]any{"summary": "notes from paris"}, "wikipedia")

	results := c.Search("paris")
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Relevance != "high" || results[0].Key != "paris weather" {
		t.Errorf("first result = %s/%s, want high/paris weather", results[0].Relevance, results[0].Key)
	}
	if results[1].Relevance != "medium" || results[1].Key != "french cuisine" {
		t.Errorf("second result = %s/%s, want medium/french cuisine", results[1].Relevance, results[1].Key)
	}

	// Value-only match lands in the medium tier.
	rainy := c.Search("rainy")
	if len(rainy) != 1 || rainy[0].Relevance != "medium" {
		t.Errorf("value-content search = %+v, want one medium hit", rainy)
	}
}

func TestSearch_CapsAtFive(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	for _, topic := range []string{"star one", "star two", "star three", "star four", "star five", "star six"} {
		c.Store(topic, map[string]any{"summary": "a star"}, "wikipedia")
	}

	if got := len(c.Search("star")); got != 5 {
		t.Errorf("results = %d, want 5", got)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge_base.json")
	src := &stubSource{name: "wikipedia"}

	c := New(testLogger(), path, src, nil)
	c.Store("mars", map[string]any{"summary": "red planet"}, "wikipedia")
	c.LearnFromConversation("hello there", "Hello Commander.")

	reloaded := New(testLogger(), path, src, nil)
	if got, want := reloaded.Stats().TotalEntries, c.Stats().TotalEntries; got != want {
		t.Fatalf("reloaded entries = %d, want %d", got, want)
	}

	result := reloaded.LookupOrLearn(context.Background(), "mars")
	if result.Source != "knowledge_base" {
		t.Errorf("reloaded lookup source = %q, want knowledge_base", result.Source)
	}
	if got := result.Data["summary"]; got != "red planet" {
		t.Errorf("reloaded summary = %v", got)
	}
	if src.calls != 0 {
		t.Errorf("collaborator called %d times after reload", src.calls)
	}
}

func TestLoad_MalformedDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge_base.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(testLogger(), path, &stubSource{name: "wikipedia"}, nil)
	if got := c.Stats().TotalEntries; got != 0 {
		t.Errorf("entries after malformed load = %d, want 0", got)
	}
}

func TestLearnFromConversation_BucketOverwrite(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	// Same input hashes to the same bucket; the second write must
	// silently replace the first.
	c.LearnFromConversation("hello", "first response")
	c.LearnFromConversation("hello", "second response")

	if got := c.Stats().Kinds["conversation"]; got != 1 {
		t.Fatalf("conversation entries = %d, want 1", got)
	}

	results := c.Search("second response")
	if len(results) != 1 {
		t.Fatalf("search for overwritten response = %d hits, want 1", len(results))
	}
}

func TestStats_GroupsBySourceAndKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge_base.json")
	c := New(testLogger(), path, &stubSource{name: "wikipedia"}, nil)

	c.Store("mars", map[string]any{"summary": "red"}, "wikipedia")
	c.Store("weather_london", map[string]any{"temperature": 18.0}, "openweather")
	c.LearnFromConversation("hi", "Hello Commander.")

	stats := c.Stats()
	if stats.TotalEntries != 3 {
		t.Errorf("total = %d, want 3", stats.TotalEntries)
	}
	if stats.Sources["wikipedia"] != 1 || stats.Sources["openweather"] != 1 {
		t.Errorf("sources = %v", stats.Sources)
	}
	if stats.Kinds["knowledge"] != 2 || stats.Kinds["conversation"] != 1 {
		t.Errorf("kinds = %v", stats.Kinds)
	}
	if stats.FileSize <= 0 {
		t.Errorf("file size = %d, want > 0 (write-through persistence)", stats.FileSize)
	}
}

func TestWeather_LearnsReadingUnderCityKey(t *testing.T) {
	weather := &stubWeather{
		reading: map[string]any{"city": "Tokyo", "temperature": 22.5, "description": "clear sky", "humidity": 40},
		status:  LookupSuccess,
	}
	c := New(testLogger(), filepath.Join(t.TempDir(), "kb.json"), &stubSource{name: "wikipedia"}, weather)

	result := c.Weather(context.Background(), "Tokyo")
	if result.Status != LookupSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if result.Source != "openweather" {
		t.Errorf("source = %q, want openweather", result.Source)
	}

	recalled := c.LookupOrLearn(context.Background(), "weather_tokyo")
	if recalled.Source != "knowledge_base" {
		t.Errorf("weather reading was not cached: source=%q", recalled.Source)
	}
}

func TestWeather_DisabledWithoutCollaborator(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	result := c.Weather(context.Background(), "Tokyo")
	if result.Status != LookupDisabled {
		t.Errorf("status = %q, want disabled", result.Status)
	}
}

func TestConfigureSource_UnknownNameWarnsOnly(t *testing.T) {
	c := newTestCache(t, &stubSource{name: "wikipedia"})

	// Must not panic or error; unknown names are logged and ignored.
	enabled := true
	c.ConfigureSource("worldbank", SourceOptions{Enabled: &enabled})
}

func TestConfigureSource_TogglesProvider(t *testing.T) {
	wiki := NewWikipedia(testLogger())
	c := New(testLogger(), filepath.Join(t.TempDir(), "kb.json"), wiki, nil)

	disabled := false
	c.ConfigureSource("wikipedia", SourceOptions{Enabled: &disabled})

	if _, status := wiki.Lookup(context.Background(), "anything"); status != LookupDisabled {
		t.Errorf("lookup status after disable = %q, want disabled", status)
	}
}
