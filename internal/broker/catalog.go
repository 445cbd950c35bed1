package broker

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// CatalogEntry maps one tool category to the broker actions backing it
type CatalogEntry struct {
	Name        string   `json:"name" yaml:"name"`
	AppName     string   `json:"appName" yaml:"app_name"`
	Actions     []string `json:"actions" yaml:"actions"`
	Description string   `json:"description" yaml:"description"`
}

// Catalog is the fixed set of integrable tool categories
type Catalog []CatalogEntry

// DefaultCatalog returns the built-in tool catalog
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:        "google_calendar",
			AppName:     "googlecalendar",
			Actions:     []string{"GOOGLECALENDAR_CREATE_EVENT", "GOOGLECALENDAR_FIND_EVENT"},
			Description: "Useful for finding and creating calendar events",
		},
		{
			Name:    "gmail",
			AppName: "gmail",
			Actions: []string{
				"GMAIL_NEW_GMAIL_MESSAGE",
				"GMAIL_SEND_EMAIL",
				"GMAIL_FETCH_EMAILS",
				"GMAIL_CREATE_EMAIL_DRAFT",
			},
			Description: "Useful for reading and sending emails",
		},
	}
}

// LoadCatalog reads a YAML catalog override from disk. An empty path returns
// the default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("tool catalog %s is empty", path)
	}
	return catalog, nil
}

// Categories returns the catalog's category names in declaration order
func (c Catalog) Categories() []string {
	names := make([]string, 0, len(c))
	for _, entry := range c {
		names = append(names, entry.Name)
	}
	return names
}

// Lookup finds a catalog entry by category name
func (c Catalog) Lookup(name string) (CatalogEntry, bool) {
	for _, entry := range c {
		if entry.Name == name {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// ActionsFor resolves category names to the union of their broker actions,
// silently skipping unknown categories.
func (c Catalog) ActionsFor(categories []string) []string {
	var actions []string
	for _, name := range categories {
		entry, ok := c.Lookup(name)
		if !ok {
			continue
		}
		actions = append(actions, entry.Actions...)
	}
	return actions
}

// AppsFor resolves category names to the distinct broker app names involved
func (c Catalog) AppsFor(categories []string) []string {
	seen := make(map[string]bool)
	var apps []string
	for _, name := range categories {
		entry, ok := c.Lookup(name)
		if !ok || seen[entry.AppName] {
			continue
		}
		seen[entry.AppName] = true
		apps = append(apps, entry.AppName)
	}
	return apps
}
