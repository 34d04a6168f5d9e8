package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"reviews-refresh/models"
	"reviews-refresh/utils"
)

// LoadClients reads the client list from path. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadClients(path string) ([]models.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clients: %w", err)
	}

	var clients []models.Client
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &clients)
	default:
		err = json.Unmarshal(data, &clients)
	}
	if err != nil {
		return nil, fmt.Errorf("parse clients %q: %w", path, err)
	}

	if err := ValidateClients(clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// ValidateClients checks that every client has a place id and a unique slug
// that is safe to use as a file name.
func ValidateClients(clients []models.Client) error {
	slugs := utils.NewKeySet()
	for i, c := range clients {
		if c.Slug == "" {
			return fmt.Errorf("client %d: slug is required", i)
		}
		if c.Slug == "." || c.Slug == ".." || strings.ContainsAny(c.Slug, `/\`) {
			return fmt.Errorf("client %d: slug %q is not a valid file name", i, c.Slug)
		}
		if c.PlaceID == "" {
			return fmt.Errorf("client %q: placeId is required", c.Slug)
		}
		if !slugs.Add(c.Slug) {
			return fmt.Errorf("client %q: duplicate slug", c.Slug)
		}
	}
	return nil
}
