package services

import (
	"math"
	"sort"
	"time"

	"reviews-refresh/models"
)

const (
	// MaxReviews is how many reviews are kept per client.
	MaxReviews = 5

	schemaContext       = "https://schema.org"
	defaultBusinessType = "LocalBusiness"
)

// NormalizeRating rounds r to one decimal place, halves away from zero.
func NormalizeRating(r float64) float64 {
	return math.Round(r*10) / 10
}

// SortReviews returns a copy of reviews ordered by rating descending, then
// by time descending (newest first). The input slice is left untouched.
func SortReviews(reviews []models.Review) []models.Review {
	sorted := make([]models.Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		return sorted[i].Time > sorted[j].Time
	})
	return sorted
}

// TopReviews sorts reviews and keeps at most n of them.
func TopReviews(reviews []models.Review, n int) []models.Review {
	sorted := SortReviews(reviews)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// BuildSchema produces the schema.org markup for client with the given
// aggregate rating. The business type defaults to LocalBusiness.
func BuildSchema(client models.Client, rating float64, totalRatings int) models.Schema {
	businessType := client.Type
	if businessType == "" {
		businessType = defaultBusinessType
	}

	return models.Schema{
		Context:    schemaContext,
		Type:       businessType,
		ID:         client.URL,
		Name:       client.Name,
		URL:        client.URL,
		Telephone:  client.Phone,
		PriceRange: client.PriceRange,
		Address: models.PostalAddress{
			Type:            "PostalAddress",
			StreetAddress:   client.Address.Street,
			AddressLocality: client.Address.City,
			AddressRegion:   client.Address.State,
			PostalCode:      client.Address.PostalCode,
			AddressCountry:  client.Address.Country,
		},
		Geo: models.GeoCoordinates{
			Type:      "GeoCoordinates",
			Latitude:  client.Geo.Lat,
			Longitude: client.Geo.Lng,
		},
		AggregateRating: models.AggregateRating{
			Type:        "AggregateRating",
			RatingValue: rating,
			ReviewCount: totalRatings,
		},
	}
}

// BuildResult assembles the artifact for client from validated place
// details, stamping it with now.
func BuildResult(client models.Client, details *models.PlaceDetails, now time.Time) *models.CachedResult {
	var rating float64
	if details.Rating != nil {
		rating = NormalizeRating(*details.Rating)
	}
	var total int
	if details.UserRatingsTotal != nil {
		total = *details.UserRatingsTotal
	}

	reviews := TopReviews(details.Reviews, MaxReviews)

	return &models.CachedResult{
		Name:         details.Name,
		Rating:       rating,
		TotalRatings: total,
		Reviews:      reviews,
		Schema:       BuildSchema(client, rating, total),
		LastUpdated:  FormatTimestamp(now),
	}
}

// FormatTimestamp renders t the way lastUpdated is stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(models.TimestampLayout)
}
