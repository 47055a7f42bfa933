package config

import "strings"

// Resolve maps a user-supplied name through the [aliases] table. Names
// without an alias are returned trimmed but otherwise unchanged.
//
//	[aliases]
//	np = "numpy"
//	pd = "pandas"
func (c *Config) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if pkg, ok := c.Aliases[name]; ok && strings.TrimSpace(pkg) != "" {
		return strings.TrimSpace(pkg)
	}
	return name
}

// ResolveAll applies Resolve to every name, dropping blanks.
func (c *Config) ResolveAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if r := c.Resolve(n); r != "" {
			out = append(out, r)
		}
	}
	return out
}
