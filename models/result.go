package models

import "time"

// TimestampLayout is the ISO-8601 form, with milliseconds, used for
// lastUpdated. Values in UTC sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// CachedResult is the per-client artifact written to data/<slug>.json.
type CachedResult struct {
	Name         string   `json:"name"`
	Rating       float64  `json:"rating"`
	TotalRatings int      `json:"totalRatings"`
	Reviews      []Review `json:"reviews"`
	Schema       Schema   `json:"schema"`
	LastUpdated  string   `json:"lastUpdated"` // ISO-8601; its age decides freshness
}

// Schema is a schema.org LocalBusiness (or subtype) markup object.
type Schema struct {
	Context         string          `json:"@context"`
	Type            string          `json:"@type"`
	ID              string          `json:"@id"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Telephone       string          `json:"telephone"`
	PriceRange      string          `json:"priceRange,omitempty"`
	Address         PostalAddress   `json:"address"`
	Geo             GeoCoordinates  `json:"geo"`
	AggregateRating AggregateRating `json:"aggregateRating"`
}

type PostalAddress struct {
	Type            string `json:"@type"`
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	PostalCode      string `json:"postalCode"`
	AddressCountry  string `json:"addressCountry"`
}

type GeoCoordinates struct {
	Type      string  `json:"@type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type AggregateRating struct {
	Type        string  `json:"@type"`
	RatingValue float64 `json:"ratingValue"`
	ReviewCount int     `json:"reviewCount"`
}

// Outcome is how a single client's refresh ended.
type Outcome string

const (
	// OutcomeFresh means the cached file was young enough and nothing was fetched.
	OutcomeFresh Outcome = "fresh"
	// OutcomeUpdated means new data was fetched and written.
	OutcomeUpdated Outcome = "updated"
	// OutcomeFallback means the refresh failed and the previous file was kept.
	OutcomeFallback Outcome = "fallback"
	// OutcomeNoFallback means the refresh failed and no previous file exists.
	OutcomeNoFallback Outcome = "no_fallback"
)

// Failed reports whether the outcome is one of the failure outcomes.
func (o Outcome) Failed() bool {
	return o == OutcomeFallback || o == OutcomeNoFallback
}

// ClientReport records what happened to one client during a run.
type ClientReport struct {
	Slug     string
	Outcome  Outcome
	Rating   float64
	Reviews  int
	Err      error
	Duration time.Duration
}

// RunReport aggregates the per-client reports of one run, in client order.
type RunReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Clients  []ClientReport
}

// Count returns how many clients ended with the given outcome.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, c := range r.Clients {
		if c.Outcome == o {
			n++
		}
	}
	return n
}
