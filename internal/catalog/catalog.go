package catalog

import "strings"

// Module is one purchasable analysis module. The catalog is static; Stripe
// price ids are attached from configuration at checkout time.
type Module struct {
	Name        string
	Title       string
	Description string
}

var modules = []Module{
	{
		Name:        "SEO",
		Title:       "Search Visibility",
		Description: "Indexing, metadata and ranking signals for the submitted domain.",
	},
	{
		Name:        "Security",
		Title:       "Security Posture",
		Description: "TLS configuration, exposed surfaces and known-issue checks.",
	},
	{
		Name:        "Performance",
		Title:       "Performance",
		Description: "Load behavior and delivery weight of the public site.",
	},
	{
		Name:        "Reputation",
		Title:       "Online Reputation",
		Description: "Brand mentions and reputation indicators across public sources.",
	},
}

// Modules returns the full catalog in display order.
func Modules() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// Lookup finds a module by name, case-insensitively.
func Lookup(name string) (Module, bool) {
	for _, m := range modules {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Module{}, false
}

// Names returns the canonical module names.
func Names() []string {
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
	}
	return names
}
