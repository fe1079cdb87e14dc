package expiry

import (
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Capability tags a test type with a behaviour the post-processing rules care
// about.
type Capability string

const (
	CapabilityAnnual         Capability = "annual"
	CapabilityFirstTest      Capability = "first_test"
	CapabilityADR            Capability = "adr"
	CapabilityLEC            Capability = "lec"
	CapabilityTIR            Capability = "tir"
	CapabilityRoadworthiness Capability = "roadworthiness"
	CapabilitySpecialist     Capability = "specialist"
)

var knownCapabilities = map[Capability]bool{
	CapabilityAnnual:         true,
	CapabilityFirstTest:      true,
	CapabilityADR:            true,
	CapabilityLEC:            true,
	CapabilityTIR:            true,
	CapabilityRoadworthiness: true,
	CapabilitySpecialist:     true,
}

// TestTypeDefinition describes one test type id.
type TestTypeDefinition struct {
	ID           string       `yaml:"-"`
	Name         string       `yaml:"name"`
	Capabilities []Capability `yaml:"capabilities"`
}

// Has reports whether the definition carries capability c.
func (d TestTypeDefinition) Has(c Capability) bool {
	for _, x := range d.Capabilities {
		if x == c {
			return true
		}
	}
	return false
}

// Catalog is the immutable set of known test type definitions.
type Catalog struct {
	types map[string]TestTypeDefinition
}

type catalogFile struct {
	TestTypes map[string]TestTypeDefinition `yaml:"test_types"`
}

// NewCatalog builds a catalog from definitions keyed by id.
func NewCatalog(defs map[string]TestTypeDefinition) *Catalog {
	c := &Catalog{types: make(map[string]TestTypeDefinition, len(defs))}
	for id, d := range defs {
		d.ID = id
		d.Capabilities = append([]Capability(nil), d.Capabilities...)
		c.types[id] = d
	}
	return c
}

// ParseCatalog decodes a test type document and rejects unknown capability
// tags.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigIntegrity, "failed to parse test type catalog")
	}
	for id, d := range f.TestTypes {
		for _, c := range d.Capabilities {
			if !knownCapabilities[c] {
				return nil, apperrors.ConfigIntegrity("unknown test type capability").
					WithDetail(fmt.Sprintf("test type %s: %q", id, c))
			}
		}
	}
	return NewCatalog(f.TestTypes), nil
}

// LoadCatalog reads TestTypesFile from fsys.
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, TestTypesFile)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigIntegrity, "failed to read test type catalog")
	}
	return ParseCatalog(data)
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (TestTypeDefinition, bool) {
	d, ok := c.types[id]
	return d, ok
}

// Has reports whether test type id carries capability. Unknown ids carry
// nothing.
func (c *Catalog) Has(id string, capability Capability) bool {
	if c == nil {
		return false
	}
	d, ok := c.types[id]
	return ok && d.Has(capability)
}

// IDsWith lists the ids carrying capability, sorted.
func (c *Catalog) IDsWith(capability Capability) []string {
	var out []string
	for id, d := range c.types {
		if d.Has(capability) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.types)
}
