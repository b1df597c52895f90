package registry

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// GlobalRegion matches every region in ByRegion lookups.
const GlobalRegion = "Global"

// Metadata describes a job board. It is static for the life of the process.
type Metadata struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	DisplayName      string   `yaml:"display_name" json:"display_name"`
	BaseURL          string   `yaml:"base_url" json:"base_url"`
	Regions          []string `yaml:"regions" json:"regions"`
	Currency         string   `yaml:"currency" json:"currency"`
	RateLimitPerHour int      `yaml:"rate_limit_per_hour" json:"rate_limit_per_hour"`
	Features         []string `yaml:"features" json:"features"`
	Description      string   `yaml:"description" json:"description"`
}

// InRegion reports whether the board serves region. Global boards serve all.
func (m Metadata) InRegion(region string) bool {
	for _, r := range m.Regions {
		if r == GlobalRegion || r == region {
			return true
		}
	}
	return false
}

type catalogFile struct {
	Providers []Metadata `yaml:"providers"`
}

// LoadCatalog parses the embedded provider catalog.
func LoadCatalog() ([]Metadata, error) {
	return parseCatalog(catalogYAML)
}

// LoadCatalogFile reads a provider catalog from path.
func LoadCatalogFile(path string) ([]Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read catalog")
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]Metadata, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal catalog")
	}
	for i, m := range f.Providers {
		if m.ID == "" {
			return nil, eris.Errorf("registry: catalog entry %d has no id", i)
		}
	}
	return f.Providers, nil
}
