package models

// Client is a configured business whose place reviews are refreshed.
// It is loaded once per run and never mutated.
type Client struct {
	Slug       string  `json:"slug" yaml:"slug"`
	PlaceID    string  `json:"placeId" yaml:"placeId"`
	Type       string  `json:"type" yaml:"type"`
	Name       string  `json:"name" yaml:"name"`
	URL        string  `json:"url" yaml:"url"`
	Phone      string  `json:"phone" yaml:"phone"`
	PriceRange string  `json:"priceRange,omitempty" yaml:"priceRange,omitempty"`
	Address    Address `json:"address" yaml:"address"`
	Geo        Geo     `json:"geo" yaml:"geo"`
}

// Address is the postal address of a client.
type Address struct {
	Street     string `json:"street" yaml:"street"`
	City       string `json:"city" yaml:"city"`
	State      string `json:"state" yaml:"state"`
	PostalCode string `json:"postalCode" yaml:"postalCode"`
	Country    string `json:"country" yaml:"country"`
}

// Geo holds WGS84 coordinates.
type Geo struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}
