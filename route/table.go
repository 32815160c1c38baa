package route

import (
	"sort"
	"strings"

	"github.com/MrEthical07/authstate/session"
)

// Rule binds a path prefix to a requirement. Prefixes match on segment
// boundaries: "/person" covers "/person" and "/person/list", not "/personal".
type Rule struct {
	Prefix       string   `yaml:"prefix"`
	RequiresAuth bool     `yaml:"auth"`
	Roles        []string `yaml:"roles"`
}

// Table resolves a path to the requirement of its longest matching prefix.
type Table struct {
	def   Requirement
	rules []compiledRule
}

type compiledRule struct {
	prefix string
	req    Requirement
}

// NewTable builds a table. def applies to paths no rule covers.
func NewTable(def Requirement, rules ...Rule) *Table {
	t := &Table{def: def}
	for _, r := range rules {
		t.rules = append(t.rules, compiledRule{
			prefix: cleanPath(r.Prefix),
			req: Requirement{
				RequiresAuth:  r.RequiresAuth || len(r.Roles) > 0,
				RequiredRoles: session.NewRoleSet(r.Roles...),
			},
		})
	}
	sort.SliceStable(t.rules, func(i, j int) bool {
		return len(t.rules[i].prefix) > len(t.rules[j].prefix)
	})
	return t
}

// DefaultRules mirror the console's menu visibility.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/person", Roles: []string{"superadmin", "user1"}},
		{Prefix: "/management", Roles: []string{"superadmin"}},
		{Prefix: "/settings", Roles: []string{"admin", "superadmin"}},
		{Prefix: "/profile", RequiresAuth: true},
	}
}

// DefaultTable requires a session everywhere and roles per DefaultRules.
func DefaultTable() *Table {
	return NewTable(Requirement{RequiresAuth: true}, DefaultRules()...)
}

// Lookup returns the requirement for path.
func (t *Table) Lookup(path string) Requirement {
	p := cleanPath(path)
	for _, r := range t.rules {
		if r.prefix == "/" || p == r.prefix || strings.HasPrefix(p, r.prefix+"/") {
			return r.req
		}
	}
	return t.def
}
