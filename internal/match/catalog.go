// Package match ranks offered services and experts against a session's
// business context.
//
// The service and expert directory is a read-only catalog loaded from YAML.
// A default catalog is embedded so the engine works without operator
// configuration; deployments can point LEADPIPE_CATALOG at their own file.
package match

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog holds the offered services and the expert directory. Listing
// order is meaningful: it breaks ranking ties.
type Catalog struct {
	Services []models.Service `yaml:"services"`
	Experts  []models.Expert  `yaml:"experts"`

	// keywordRes holds word-boundary matchers for every service keyword,
	// compiled once at parse time so matching stays read-only.
	keywordRes map[string]*regexp.Regexp
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultCatalogYAML)
}

// NewCatalogFromFile reads and parses a catalog YAML file.
func NewCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Services) == 0 {
		return nil, fmt.Errorf("catalog defines no services")
	}
	c.keywordRes = make(map[string]*regexp.Regexp)
	for _, svc := range c.Services {
		for _, kw := range svc.Keywords {
			if _, exists := c.keywordRes[kw]; !exists {
				c.keywordRes[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
			}
		}
	}
	return &c, nil
}

// keywordRe returns the compiled matcher for a catalog keyword.
func (c *Catalog) keywordRe(keyword string) *regexp.Regexp {
	return c.keywordRes[keyword]
}

// GetExpert looks up an expert by id. Returns nil if unknown.
func (c *Catalog) GetExpert(id string) *models.Expert {
	for i := range c.Experts {
		if c.Experts[i].ID == id {
			return &c.Experts[i]
		}
	}
	return nil
}
