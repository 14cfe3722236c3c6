package scenario

import (
	"slices"
	"sort"
)

// Catalog is an ordered, immutable set of scenarios.
type Catalog struct {
	scenarios []Scenario
}

// NewCatalog creates a catalog holding scenarios in the given order.
// The catalog is not validated; call Validate before using it to drive ticks.
func NewCatalog(scenarios ...Scenario) *Catalog {
	return &Catalog{scenarios: slices.Clone(scenarios)}
}

// All returns the scenarios in declared order.
// The returned slice is a copy.
func (c *Catalog) All() []Scenario {
	return slices.Clone(c.scenarios)
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	return len(c.scenarios)
}

// Get returns the first scenario with the given sensor ID.
func (c *Catalog) Get(sensorID string) (Scenario, bool) {
	for _, s := range c.scenarios {
		if s.SensorID == sensorID {
			return s, true
		}
	}

	return Scenario{}, false
}

// Role groups the sections visible to one role.
type Role struct {
	Name     string
	Sections []Section
}

// Section groups the assets of one facility section or field.
type Section struct {
	Name   string
	Assets []Asset
}

// Asset groups the scenarios attached to one piece of equipment or location.
// Scenarios without an asset are grouped under an Asset with an empty Name.
type Asset struct {
	Name      string
	Scenarios []Scenario
}

// Hierarchy groups the catalog by role, section and asset.
// Groups are sorted by name; scenarios keep their catalog order.
func (c *Catalog) Hierarchy() []Role {
	tree := map[string]map[string]map[string][]Scenario{}
	for _, s := range c.scenarios {
		sections, ok := tree[s.Role]
		if !ok {
			sections = map[string]map[string][]Scenario{}
			tree[s.Role] = sections
		}
		assets, ok := sections[s.Section]
		if !ok {
			assets = map[string][]Scenario{}
			sections[s.Section] = assets
		}
		assets[s.Asset] = append(assets[s.Asset], s)
	}

	roles := make([]Role, 0, len(tree))
	for _, roleName := range sortedKeys(tree) {
		role := Role{Name: roleName}
		for _, sectionName := range sortedKeys(tree[roleName]) {
			section := Section{Name: sectionName}
			for _, assetName := range sortedKeys(tree[roleName][sectionName]) {
				section.Assets = append(section.Assets, Asset{
					Name:      assetName,
					Scenarios: tree[roleName][sectionName][assetName],
				})
			}
			role.Sections = append(role.Sections, section)
		}
		roles = append(roles, role)
	}

	return roles
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
