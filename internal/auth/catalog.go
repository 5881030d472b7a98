package auth

import "sort"

// Special permission keys that exist outside the resource/operation grid.
const (
	KeyAllAccess    = "special.all_access"
	KeyShareReports = "special.share_reports"
	KeyManageSystem = "special.manage_system"
)

// The two source lists below define the entire composite key space. The
// catalog derives everything else from them; nothing is hand-enumerated.
var (
	catalogResources = []string{
		"projects",
		"staff",
		"labour",
		"plant",
		"suppliers",
		"invoices",
		"reports",
		"users",
		"roles",
		"settings",
	}

	catalogOperations = []string{
		"view",
		"create",
		"update",
		"delete",
		"export",
	}

	catalogSpecials = []string{
		KeyAllAccess,
		KeyShareReports,
		KeyManageSystem,
	}
)

// Catalog is the single source of truth for the legal permission-key space.
// It is computed once and never mutated afterwards.
type Catalog struct {
	keys   map[string]struct{}
	sorted []string
}

// NewCatalog derives the full key set from the resource/operation cross
// product plus the special keys.
func NewCatalog() *Catalog {
	c := &Catalog{
		keys: make(map[string]struct{}, len(catalogResources)*len(catalogOperations)+len(catalogSpecials)),
	}
	for _, resource := range catalogResources {
		for _, op := range catalogOperations {
			c.keys[resource+"."+op] = struct{}{}
		}
	}
	for _, key := range catalogSpecials {
		c.keys[key] = struct{}{}
	}
	c.sorted = make([]string, 0, len(c.keys))
	for key := range c.keys {
		c.sorted = append(c.sorted, key)
	}
	sort.Strings(c.sorted)
	return c
}

// IsValidKey reports whether the key belongs to the catalog. Every API that
// accepts permission keys as input must reject keys failing this test.
func (c *Catalog) IsValidKey(key string) bool {
	_, ok := c.keys[key]
	return ok
}

// Keys returns the full key space in stable order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// Resources returns the fixed resource list.
func (c *Catalog) Resources() []string {
	out := make([]string, len(catalogResources))
	copy(out, catalogResources)
	return out
}

// Operations returns the fixed operation list.
func (c *Catalog) Operations() []string {
	out := make([]string, len(catalogOperations))
	copy(out, catalogOperations)
	return out
}

// SpecialKeys returns the fixed special-key list.
func (c *Catalog) SpecialKeys() []string {
	out := make([]string, len(catalogSpecials))
	copy(out, catalogSpecials)
	return out
}
