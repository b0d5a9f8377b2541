package models

import "time"

// Item is a single piece of clothing tracked by the wardrobe.
type Item struct {
	ID           string     `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Category     string     `yaml:"category" json:"category"`
	Color        string     `yaml:"color" json:"color,omitempty"`
	WearCount    int64      `yaml:"wear_count" json:"wear_count"`
	WashCount    int64      `yaml:"wash_count" json:"wash_count"`
	LastWornAt   *time.Time `yaml:"last_worn_at" json:"last_worn_at,omitempty"`
	LastWashedAt *time.Time `yaml:"last_washed_at" json:"last_washed_at,omitempty"`
	SortOrder    int64      `yaml:"sort_order" json:"sort_order"`
	IsActive     bool       `yaml:"is_active" json:"is_active"`
	CreatedAt    time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `yaml:"updated_at" json:"updated_at"`
}
