package policy

import "go-stats-cache/internal/models"

// PoliciesConfig is the YAML document overriding the default policy table
type PoliciesConfig struct {
	Policies []models.CachePolicy      `yaml:"policies"`
	Routes   map[string]models.Category `yaml:"routes"`
}

// Route maps an endpoint prefix to the category serving it
type Route struct {
	Prefix   string
	Category models.Category
}
