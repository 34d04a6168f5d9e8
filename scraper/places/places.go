// Package places fetches place details and reviews from the Google Place
// Details API.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"reviews-refresh/config"
	"reviews-refresh/models"
	"reviews-refresh/utils"
)

// Fields is the comma-separated field mask sent with every request.
const Fields = "name,rating,user_ratings_total,reviews"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// ErrInvalidResponse marks a response that arrived but does not carry a
// usable place details payload.
var ErrInvalidResponse = errors.New("invalid API response")

// Fetcher issues Place Details requests.
type Fetcher struct {
	endpoint string
	apiKey   string
	language string
	client   *http.Client
	logger   *utils.Logger
}

// New creates a Fetcher from cfg. A zero HTTPTimeout leaves requests
// unbounded except by the caller's context.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	return NewWithClient(cfg, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
}

// NewWithClient creates a Fetcher that sends requests through client.
func NewWithClient(cfg *config.Config, client *http.Client, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		endpoint: cfg.PlacesEndpoint,
		apiKey:   cfg.GoogleAPIKey,
		language: cfg.Language,
		client:   client,
		logger:   logger,
	}
}

// FetchDetails performs exactly one GET for placeID and returns the
// validated result. It never retries.
func (f *Fetcher) FetchDetails(ctx context.Context, placeID string) (*models.PlaceDetails, error) {
	reqURL, err := f.requestURL(placeID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("places: build request for %s: %w", placeID, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: request for %s: %w", placeID, err)
	}
	defer resp.Body.Close()

	f.logger.Debug("[places] GET %s -> %d in %v", placeID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("places: request for %s: unexpected status %d", placeID, resp.StatusCode)
	}

	var payload models.PlaceDetailsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("places: decode response for %s: %w", placeID, err)
	}

	if err := Validate(&payload); err != nil {
		return nil, fmt.Errorf("places: %s: %w", placeID, err)
	}
	return payload.Result, nil
}

func (f *Fetcher) requestURL(placeID string) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("places: parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("place_id", placeID)
	q.Set("fields", Fields)
	q.Set("key", f.apiKey)
	if f.language != "" {
		q.Set("language", f.language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Validate rejects payloads that would not yield a complete result: a
// non-OK status, a missing result object, a result without a name, or
// reviews rated outside 1..5. Places nobody has reviewed yet come back
// without rating and user_ratings_total; those are accepted. All failures
// wrap ErrInvalidResponse.
func Validate(payload *models.PlaceDetailsResponse) error {
	if payload.Status != "" && payload.Status != "OK" {
		if payload.ErrorMessage != "" {
			return fmt.Errorf("%w: status %s: %s", ErrInvalidResponse, payload.Status, payload.ErrorMessage)
		}
		return fmt.Errorf("%w: status %s", ErrInvalidResponse, payload.Status)
	}

	r := payload.Result
	if r == nil {
		return fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: result has no name", ErrInvalidResponse)
	}
	for i, rv := range r.Reviews {
		if rv.Rating < 1 || rv.Rating > 5 {
			return fmt.Errorf("%w: review %d has rating %d", ErrInvalidResponse, i, rv.Rating)
		}
	}
	return nil
}
