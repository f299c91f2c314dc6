// Package catalog holds the fixed keyword tables and illustrative image pools
// used when scheduling generated activities.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

type Image struct {
	File string `yaml:"file"`
	Alt  string `yaml:"alt"`
}

type KeywordRule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

type VenueRule struct {
	Query    string   `yaml:"query"`
	Keywords []string `yaml:"keywords"`
}

type Catalog struct {
	ActivityTypes []KeywordRule      `yaml:"activity_types"`
	DefaultType   string             `yaml:"default_type"`
	VenueQueries  []VenueRule        `yaml:"venue_queries"`
	Images        map[string][]Image `yaml:"images"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which the package tests rule out.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultYAML)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if c.DefaultType == "" {
		return nil, fmt.Errorf("catalog: default_type is required")
	}
	if len(c.Images[c.DefaultType]) == 0 {
		return nil, fmt.Errorf("catalog: no images for default type %q", c.DefaultType)
	}
	for _, rule := range c.ActivityTypes {
		if len(c.Images[rule.Type]) == 0 {
			return nil, fmt.Errorf("catalog: no images for activity type %q", rule.Type)
		}
	}
	return &c, nil
}

// Classify returns the activity type of the first rule with a keyword
// present in any of the texts, or the default type.
func (c *Catalog) Classify(texts ...string) string {
	tokens := tokenSet(texts...)
	for _, rule := range c.ActivityTypes {
		if matchesAny(tokens, rule.Keywords) {
			return rule.Type
		}
	}
	return c.DefaultType
}

// VenueQuery returns the search query of the first venue rule matching the
// texts. ok is false when nothing matched.
func (c *Catalog) VenueQuery(texts ...string) (query string, ok bool) {
	tokens := tokenSet(texts...)
	for _, rule := range c.VenueQueries {
		if matchesAny(tokens, rule.Keywords) {
			return rule.Query, true
		}
	}
	return "", false
}

// Pool returns the image pool for an activity type, falling back to the
// default type's pool.
func (c *Catalog) Pool(activityType string) []Image {
	if pool := c.Images[activityType]; len(pool) > 0 {
		return pool
	}
	return c.Images[c.DefaultType]
}

func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(texts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range texts {
		for _, tok := range Tokenize(t) {
			set[tok] = struct{}{}
		}
	}
	return set
}

func matchesAny(tokens map[string]struct{}, keywords []string) bool {
	for _, k := range keywords {
		if _, ok := tokens[k]; ok {
			return true
		}
	}
	return false
}
