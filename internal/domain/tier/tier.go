// Package tier maps ratings onto named skill brackets.
package tier

import "sort"

// Tier describes one named skill bracket.
type Tier struct {
	Name      string  `json:"name"`
	Icon      string  `json:"icon"`
	Color     string  `json:"color"`
	MinRating float64 `json:"min_rating"`
}

// Default ladder, highest threshold first.
var defaultTiers = []Tier{
	{Name: "Pool God", Icon: "crown", Color: "#ffd700", MinRating: 2500},
	{Name: "Master", Icon: "diamond", Color: "#b9f2ff", MinRating: 2000},
	{Name: "Expert", Icon: "star", Color: "#c0c0c0", MinRating: 1500},
	{Name: "Intermediate", Icon: "cue", Color: "#cd7f32", MinRating: 1000},
	{Name: "Novice", Icon: "chalk", Color: "#8b8b8b", MinRating: 0},
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithTiers replaces the default ladder. The slice is copied and sorted
// highest threshold first.
func WithTiers(tiers []Tier) Option {
	return func(c *Classifier) {
		if len(tiers) > 0 {
			c.tiers = append([]Tier(nil), tiers...)
		}
	}
}

// Classifier resolves a rating to its tier. It is deterministic and total:
// every real rating resolves to some tier as long as the lowest threshold
// sits at or below the rating floor.
type Classifier struct {
	tiers []Tier
}

// New creates a Classifier with configuration options.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		tiers: append([]Tier(nil), defaultTiers...),
	}

	for _, opt := range opts {
		opt(c)
	}

	sort.SliceStable(c.tiers, func(i, j int) bool {
		return c.tiers[i].MinRating > c.tiers[j].MinRating
	})

	return c
}

// Classify returns the first tier whose threshold is at or below rating,
// falling back to the lowest tier for anything below every threshold.
func (c *Classifier) Classify(rating float64) Tier {
	for _, t := range c.tiers {
		if rating >= t.MinRating {
			return t
		}
	}
	return c.tiers[len(c.tiers)-1]
}

// Tiers returns a copy of the configured ladder, highest threshold first.
func (c *Classifier) Tiers() []Tier {
	return append([]Tier(nil), c.tiers...)
}
