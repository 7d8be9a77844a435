package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vegalabs/vega/internal/knowledge"
	"github.com/vegalabs/vega/internal/session"
)

// hasAny reports whether the normalized command contains any of the
// given keywords as a substring. Sub-action selection inside a handler
// works on keywords, not the full pattern set.
func hasAny(cmd string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(cmd, w) {
			return true
		}
	}
	return false
}

// firstOf returns the first keyword present in the command, or "".
func firstOf(cmd string, words ...string) string {
	for _, w := range words {
		if strings.Contains(cmd, w) {
			return w
		}
	}
	return ""
}

func (e *Engine) handleSystemControl(cmd string) Response {
	if hasAny(cmd, "status", "health") {
		summary := e.session.ContextSummary()
		return success("get_system_status", "Retrieving system status").withData(map[string]any{
			"mode":          summary.Mode,
			"system_health": summary.SystemHealth,
			"device_states": summary.DeviceStates,
		})
	}

	if strings.Contains(cmd, "mode") {
		mode := session.Mode(firstOf(cmd, "defense", "home", "night", "manual"))
		if mode != "" && e.session.SetMode(mode) {
			return success("change_mode", fmt.Sprintf("Switching to %s mode", mode)).
				withData(map[string]any{"mode": string(mode)})
		}
	}

	return success("system_check", "System check initiated")
}

func (e *Engine) handleTrinetraControl(ents Entities, cmd string) Response {
	if hasAny(cmd, "move", "forward", "backward", "left", "right") {
		direction := firstOf(cmd, "forward", "backward", "left", "right", "stop")
		if direction == "" && len(ents.Directions) > 0 {
			direction = ents.Directions[0]
		}
		if direction == "" {
			direction = "stop"
		}
		return success("trinetra_move", fmt.Sprintf("TRINETRA moving %s", direction)).
			withData(map[string]any{"direction": direction})
	}

	if hasAny(cmd, "camera", "stream", "snapshot") {
		action := "stream"
		if strings.Contains(cmd, "snapshot") {
			action = "snapshot"
		}
		return success("trinetra_camera", "TRINETRA camera activated").
			withData(map[string]any{"action": action})
	}

	if strings.Contains(cmd, "patrol") {
		return success("trinetra_mission", "TRINETRA patrol mode activated").
			withData(map[string]any{"mission": "patrol"})
	}

	return success("trinetra_status", "TRINETRA status requested").withData(map[string]any{
		"connected": e.session.IsDeviceConnected("trinetra"),
		"state":     e.session.DeviceState("trinetra"),
	})
}

func (e *Engine) handleKrait3Control(ents Entities, cmd string) Response {
	if hasAny(cmd, "launch", "takeoff", "land", "hover", "return") {
		action := firstOf(cmd, "land", "hover", "return")
		if hasAny(cmd, "launch", "takeoff") {
			action = "takeoff"
		}
		return success("krait3_flight", fmt.Sprintf("KRAIT-3 %s command executed", action)).
			withData(map[string]any{"action": action})
	}

	if hasAny(cmd, "waypoint", "navigate") {
		coords := make([]map[string]float64, 0, len(ents.Coordinates))
		for _, c := range ents.Coordinates {
			coords = append(coords, map[string]float64{"lat": c[0], "lon": c[1]})
		}
		return success("krait3_navigation", "KRAIT-3 navigation initiated").
			withData(map[string]any{"coordinates": coords})
	}

	return success("krait3_status", "KRAIT-3 status requested").withData(map[string]any{
		"connected": e.session.IsDeviceConnected("krait3"),
		"state":     e.session.DeviceState("krait3"),
	})
}

func (e *Engine) handleVoiceControl(cmd string) Response {
	switch {
	case hasAny(cmd, "listen", "start"):
		return success("voice_start", "Voice recognition started")
	case hasAny(cmd, "stop", "quiet"):
		return success("voice_stop", "Voice recognition stopped")
	case hasAny(cmd, "repeat", "say", "speak"):
		return success("voice_repeat", "Repeating last response")
	default:
		return success("voice_status", "Voice system status")
	}
}

// questionPrefixes mark a command as a knowledge-query; the remainder
// after the prefix is the topic.
var questionPrefixes = []string{"what is", "tell me about", "explain", "who is", "where is"}

func (e *Engine) handleGeneral(ctx context.Context, cmd string) Response {
	switch {
	case hasAny(cmd, "hello", "hi", "hey"):
		return success("greeting", "Hello Commander. Vega is ready for your commands.")

	case strings.Contains(cmd, "help"):
		resp := success("help", "Available commands: system status, TRINETRA control, KRAIT-3 control, voice commands, ask about anything")
		resp.Commands = []string{
			"system status - Get system health",
			"TRINETRA move forward - Control ground unit",
			"KRAIT-3 launch - Control aerial unit",
			"start listening - Voice recognition",
			"what is [topic] - Learn about topics",
			"weather in [city] - Get weather info",
			"knowledge stats - See what I have learned",
		}
		return resp

	case hasAny(cmd, "thank", "thanks"):
		return success("acknowledge", "You are welcome, Commander.")

	case hasAny(cmd, "goodbye", "bye", "exit"):
		return success("goodbye", "Goodbye Commander. Vega standing by.")
	}

	if prefix := firstOf(cmd, questionPrefixes...); prefix != "" {
		return e.handleKnowledgeQuery(ctx, cmd, prefix)
	}

	if strings.Contains(cmd, "weather") {
		return e.handleWeatherQuery(ctx, cmd)
	}

	if hasAny(cmd, "knowledge stats", "what do you know") {
		return e.handleKnowledgeStats()
	}

	// Last resort before the default reply: surface the best match from
	// the knowledge cache, if any.
	if results := e.cache.Search(cmd); len(results) > 0 {
		best := results[0]
		return Response{
			Status:    StatusSuccess,
			Action:    "knowledge_recall",
			Message:   fmt.Sprintf("I found this in my knowledge base: %s", recallText(best.Data)),
			Data:      best.Data,
			Timestamp: time.Now(),
		}
	}

	resp := success("default", "Command received. I can help with system control, or you can ask me questions to help me learn.")
	resp.Suggestion = `Try asking "what is artificial intelligence" or "help" for available commands`
	return resp
}

func (e *Engine) handleKnowledgeQuery(ctx context.Context, cmd, prefix string) Response {
	topic := strings.TrimSpace(strings.Replace(cmd, prefix, "", 1))
	if topic == "" {
		return Response{
			Status:    StatusError,
			Message:   "Please specify what you would like to know about.",
			Timestamp: time.Now(),
		}
	}

	result := e.cache.LookupOrLearn(ctx, topic)
	if e.learning {
		e.cache.LearnFromConversation(cmd, result.Message)
	}

	return Response{
		Status:    lookupStatus(result.Status),
		Action:    "knowledge_query",
		Message:   result.Message,
		Data:      result.Data,
		Source:    result.Source,
		Timestamp: time.Now(),
	}
}

func (e *Engine) handleWeatherQuery(ctx context.Context, cmd string) Response {
	city := e.city
	words := strings.Fields(cmd)
	for i, w := range words {
		if w == "in" && i+1 < len(words) {
			city = words[i+1]
			break
		}
	}

	result := e.cache.Weather(ctx, city)
	return Response{
		Status:    lookupStatus(result.Status),
		Action:    "weather_query",
		Message:   result.Message,
		Data:      result.Data,
		Source:    result.Source,
		Timestamp: time.Now(),
	}
}

func (e *Engine) handleKnowledgeStats() Response {
	stats := e.cache.Stats()

	sources := make([]string, 0, len(stats.Sources))
	for name := range stats.Sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	sourceList := "None yet"
	if len(sources) > 0 {
		sourceList = strings.Join(sources, ", ")
	}

	return success("knowledge_stats",
		fmt.Sprintf("I have learned %d things so far. Sources: %s.", stats.TotalEntries, sourceList)).
		withData(map[string]any{
			"total_entries": stats.TotalEntries,
			"sources":       stats.Sources,
			"types":         stats.Kinds,
			"file_size":     stats.FileSize,
		})
}

// lookupStatus maps a knowledge lookup status onto a response status.
func lookupStatus(s knowledge.LookupStatus) Status {
	switch s {
	case knowledge.LookupSuccess:
		return StatusSuccess
	case knowledge.LookupNotFound:
		return StatusNotFound
	case knowledge.LookupDisabled:
		return StatusDisabled
	default:
		return StatusError
	}
}

// recallText picks a short display string for a recalled record.
func recallText(data knowledge.Record) string {
	if s, ok := data["summary"].(string); ok && s != "" {
		return s
	}
	if s, ok := data["extract"].(string); ok && s != "" {
		if len(s) > 200 {
			return s[:200]
		}
		return s
	}
	text := fmt.Sprint(map[string]any(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
