// Package role composes agent behavior from swappable bundles of
// instructions, transcript permissions, callable activities and handoff
// protocols.
package role

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
)

// Kind tags a role so a collection can switch to it.
type Kind string

// Activity is a function the model may call while a role is active.
type Activity interface {
	Name() string
	Description() string
	// Parameters is a JSON schema object describing the arguments.
	Parameters() map[string]any
}

// Registry resolves a role name to its instruction template.
type Registry interface {
	Get(name string) (string, error)
}

// Role is one capability bundle. Its instructions come from the registry
// under Name and may carry {placeholders} filled by Configure.
type Role struct {
	Kind Kind
	Name string

	permissions []Permission
	activities  []Activity
	protocols   []string

	template string
	vars     map[string]string
	text     string
}

type Option func(*Role)

func WithPermissions(perms ...Permission) Option {
	return func(r *Role) {
		r.permissions = append(r.permissions, perms...)
	}
}

func WithActivities(activities ...Activity) Option {
	return func(r *Role) {
		r.activities = append(r.activities, activities...)
	}
}

// WithProtocols names the agents this role may hand control to.
func WithProtocols(protocols ...string) Option {
	return func(r *Role) {
		r.protocols = append(r.protocols, protocols...)
	}
}

// WithVariables configures placeholders at construction.
func WithVariables(vars map[string]string) Option {
	return func(r *Role) {
		maps.Copy(r.vars, vars)
	}
}

// New loads the instructions for name from reg.
func New(reg Registry, kind Kind, name string, opts ...Option) (*Role, error) {
	template, err := reg.Get(name)
	if err != nil {
		return nil, core.NewRegistryError(name, err)
	}

	r := &Role{
		Kind:     kind,
		Name:     name,
		template: template,
		vars:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.text = format(r.template, r.vars)
	return r, nil
}

// Configure fills {key} placeholders with vars. Variables accumulate across
// calls; keys never supplied stay literal.
func (r *Role) Configure(vars map[string]string) string {
	maps.Copy(r.vars, vars)
	r.text = format(r.template, r.vars)
	return r.text
}

func (r *Role) Instructions() string { return r.text }

func (r *Role) Permissions() []Permission { return r.permissions }

func (r *Role) Activities() []Activity { return r.activities }

func (r *Role) Protocols() []string { return r.protocols }

func (r *Role) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Name)
}

var placeholder = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// format substitutes {key} with vars[key]. Doubled braces are escapes for
// literal ones; unknown keys are left as written.
func format(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		key := strings.TrimSuffix(strings.TrimPrefix(m, "{"), "}")
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
