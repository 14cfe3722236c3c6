package scenario

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/arloliu/fuda"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog definition holds no scenarios.
var ErrEmptyCatalog = errors.New("scenario: catalog has no scenarios")

// catalogFile is the on-disk shape of a catalog definition.
type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	c, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}

	return c, nil
}

// LoadFile loads a catalog from a YAML or JSON file using fuda for parsing.
// The result is not validated.
func LoadFile(path string) (*Catalog, error) {
	var f catalogFile
	if err := fuda.LoadFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to load catalog file: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, ErrEmptyCatalog
	}

	return NewCatalog(f.Scenarios...), nil
}

// Parse parses a catalog from YAML or JSON bytes.
// The result is not validated.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := fuda.LoadBytes(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, ErrEmptyCatalog
	}

	return NewCatalog(f.Scenarios...), nil
}

// Load returns the catalog at path, or the embedded catalog when path is empty,
// and validates it. Validation problems are returned joined under ErrInvalidCatalog.
func Load(path string) (*Catalog, error) {
	var (
		c   *Catalog
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if err := JoinErrors(c.Validate()); err != nil {
		return nil, err
	}

	return c, nil
}
