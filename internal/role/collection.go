package role

import (
	"errors"
	"slices"
	"strings"

	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/llm"
)

type Mode int

const (
	// ModeAll combines every member.
	ModeAll Mode = iota
	// ModeExactlyOne uses a single active member at a time.
	ModeExactlyOne
)

func (m Mode) String() string {
	if m == ModeExactlyOne {
		return "exactly_one"
	}
	return "all"
}

var errNotExactlyOne = errors.New("only valid for exactly-one collections")

// Collection aggregates the roles of one agent. Aggregates are recomputed
// after every change so readers never see a stale view.
type Collection struct {
	mode   Mode
	roles  []*Role
	active *Role

	instructions string
	activities   []Activity
	protocols    []string
	permissions  []Permission
}

func NewCollection(mode Mode, roles ...*Role) *Collection {
	c := &Collection{mode: mode}
	for _, r := range roles {
		c.add(r)
	}
	c.rebuild()
	return c
}

func (c *Collection) Mode() Mode { return c.mode }

func (c *Collection) Len() int { return len(c.roles) }

// Roles returns every member in insertion order.
func (c *Collection) Roles() []*Role {
	return slices.Clone(c.roles)
}

func (c *Collection) Contains(r *Role) bool {
	return slices.Contains(c.roles, r)
}

// Add inserts r. In exactly-one mode the first member added becomes active.
func (c *Collection) Add(r *Role) {
	c.add(r)
	c.rebuild()
}

func (c *Collection) add(r *Role) {
	if r == nil || slices.Contains(c.roles, r) {
		return
	}
	c.roles = append(c.roles, r)
	if c.mode == ModeExactlyOne && c.active == nil {
		c.active = r
	}
}

// Discard removes r. Discarding the active member activates the first
// remaining one.
func (c *Collection) Discard(r *Role) {
	idx := slices.Index(c.roles, r)
	if idx < 0 {
		return
	}
	c.roles = slices.Delete(c.roles, idx, idx+1)
	if c.active == r {
		c.active = nil
		if len(c.roles) > 0 {
			c.active = c.roles[0]
		}
	}
	c.rebuild()
}

// Activate switches to the first member of the given kind.
func (c *Collection) Activate(kind Kind) error {
	if c.mode != ModeExactlyOne {
		return core.NewConfigError("roles", "activate %q: %v", kind, errNotExactlyOne)
	}
	for _, r := range c.roles {
		if r.Kind == kind {
			c.active = r
			c.rebuild()
			return nil
		}
	}
	return core.NewConfigError("roles", "no role of kind %q in collection", kind)
}

// Active returns the active member, nil for an empty collection.
func (c *Collection) Active() (*Role, error) {
	if c.mode != ModeExactlyOne {
		return nil, core.NewConfigError("roles", "active role: %v", errNotExactlyOne)
	}
	return c.active, nil
}

// Instructions joins the distinct non-empty instructions of the roles in
// use, in insertion order.
func (c *Collection) Instructions() string { return c.instructions }

func (c *Collection) Activities() []Activity { return slices.Clone(c.activities) }

func (c *Collection) Protocols() []string { return slices.Clone(c.protocols) }

// ApplyPermissions runs the transcript through every permission of the
// roles in use.
func (c *Collection) ApplyPermissions(msgs []llm.Message) []llm.Message {
	out := slices.Clone(msgs)
	for _, p := range c.permissions {
		out = p.Apply(out)
	}
	return out
}

// SetVariables configures every member, active or not.
func (c *Collection) SetVariables(vars map[string]string) string {
	for _, r := range c.roles {
		r.Configure(vars)
	}
	c.rebuild()
	return c.instructions
}

func (c *Collection) inUse() []*Role {
	if c.mode == ModeAll {
		return c.roles
	}
	if c.active == nil {
		return nil
	}
	return []*Role{c.active}
}

func (c *Collection) rebuild() {
	var texts []string
	seenText := map[string]bool{}
	seenActivity := map[string]bool{}
	seenProtocol := map[string]bool{}
	seenPermission := map[string]bool{}

	c.activities = nil
	c.protocols = nil
	c.permissions = nil

	for _, r := range c.inUse() {
		if t := r.Instructions(); t != "" && !seenText[t] {
			seenText[t] = true
			texts = append(texts, t)
		}
		for _, a := range r.Activities() {
			if !seenActivity[a.Name()] {
				seenActivity[a.Name()] = true
				c.activities = append(c.activities, a)
			}
		}
		for _, p := range r.Protocols() {
			if !seenProtocol[p] {
				seenProtocol[p] = true
				c.protocols = append(c.protocols, p)
			}
		}
		for _, p := range r.Permissions() {
			if !seenPermission[p.Name()] {
				seenPermission[p.Name()] = true
				c.permissions = append(c.permissions, p)
			}
		}
	}

	c.instructions = strings.Join(texts, "\n")
}
