// Package knowledge provides the assistant's accreting knowledge cache.
//
// The cache maps normalized query strings to previously retrieved
// knowledge records. On a miss it consults an external lookup source
// (Wikipedia by default), stores the result write-through to a single
// JSON document, and serves it from memory afterwards. Conversation
// turns share the same storage under hash-bucketed keys.
//
// External sources implement the [Source] interface and fail closed:
// a timeout or transport error is reported as [LookupNotFound], never
// as an error the caller has to handle.
package knowledge

import "context"

// LookupStatus is the outcome of an external lookup.
type LookupStatus string

const (
	LookupSuccess  LookupStatus = "success"
	LookupNotFound LookupStatus = "not_found"
	LookupDisabled LookupStatus = "disabled"
)

// Source is an external topic lookup collaborator.
type Source interface {
	// Name identifies the source (e.g. "wikipedia"). Records learned
	// from this source are tagged with it.
	Name() string

	// Lookup retrieves a payload for a topic. Implementations must
	// fail closed: network and decode failures degrade to
	// LookupNotFound rather than raising.
	Lookup(ctx context.Context, topic string) (map[string]any, LookupStatus)
}

// WeatherSource is the differently-shaped collaborator for current
// weather readings. It is disabled until configured with an API key.
type WeatherSource interface {
	Name() string
	Current(ctx context.Context, city string) (map[string]any, LookupStatus)
}

// SourceOptions carries a partial configuration update for a named
// source. Nil fields leave the current value unchanged.
type SourceOptions struct {
	Enabled *bool
	APIKey  *string
}

// configurable is implemented by sources that accept runtime
// reconfiguration through [Cache.ConfigureSource].
type configurable interface {
	configure(opts SourceOptions)
}
