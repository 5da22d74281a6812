package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var ErrUnknownCategory = errors.New("unknown category")

type Category struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	Question string `yaml:"question"`
}

type Catalog struct {
	categories []Category
	byKey      map[string]Category
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Load reads the catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}

	c := &Catalog{byKey: make(map[string]Category, len(f.Categories))}
	for i, cat := range f.Categories {
		cat.Key = strings.ToLower(strings.TrimSpace(cat.Key))
		if cat.Key == "" || strings.TrimSpace(cat.Question) == "" {
			return nil, fmt.Errorf("category %d: key and question are required", i)
		}
		if _, dup := c.byKey[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Key)
		}
		if cat.Label == "" {
			cat.Label = cat.Key
		}
		c.categories = append(c.categories, cat)
		c.byKey[cat.Key] = cat
	}
	return c, nil
}

func (c *Catalog) List() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Lookup(key string) (Category, error) {
	cat, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, key)
	}
	return cat, nil
}

// Question resolves the prompt for a report query. An explicit prompt wins,
// otherwise the category's question is used.
func (c *Catalog) Question(category, prompt string) (string, error) {
	if p := strings.TrimSpace(prompt); p != "" {
		return p, nil
	}
	if category == "" {
		category = "other"
	}
	cat, err := c.Lookup(category)
	if err != nil {
		return "", err
	}
	return cat.Question, nil
}
