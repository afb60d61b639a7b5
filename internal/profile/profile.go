// Package profile persists named serial connection profiles.
package profile

import (
	"errors"
	"strings"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
)

// Profile is a named, validated serial configuration.
type Profile struct {
	Name string `json:"name"`
	serialcfg.SerialConfig
}

// New validates raw and names the result.
func New(name string, raw serialcfg.RawConfig) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, linkerr.New(linkerr.NameRequired, "profile name is required")
	}
	cfg, problems := serialcfg.Validate(raw)
	if len(problems) > 0 {
		return Profile{}, linkerr.Join(problems)
	}
	return Profile{Name: name, SerialConfig: cfg}, nil
}

// Collection is an ordered set of profiles keyed by name.
type Collection struct {
	order []string
	items map[string]Profile
}

// NewCollection builds a collection from profiles. A repeated name keeps
// the position of its first occurrence and the value of its last.
func NewCollection(profiles []Profile) *Collection {
	c := &Collection{items: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		c.Put(p)
	}
	return c
}

// Put inserts p, replacing any profile with the same name in place.
func (c *Collection) Put(p Profile) {
	if _, ok := c.items[p.Name]; !ok {
		c.order = append(c.order, p.Name)
	}
	c.items[p.Name] = p
}

// Get returns the profile called name
func (c *Collection) Get(name string) (Profile, bool) {
	p, ok := c.items[name]
	return p, ok
}

// Delete removes the profile called name and reports whether it existed.
func (c *Collection) Delete(name string) bool {
	if _, ok := c.items[name]; !ok {
		return false
	}
	delete(c.items, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Rename changes a profile's name keeping its position.
func (c *Collection) Rename(from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return linkerr.New(linkerr.NameRequired, "profile name is required")
	}
	p, ok := c.items[from]
	if !ok {
		return ErrNotFound
	}
	if from == to {
		return nil
	}
	if _, taken := c.items[to]; taken {
		return ErrExists
	}

	delete(c.items, from)
	p.Name = to
	c.items[to] = p
	for i, n := range c.order {
		if n == from {
			c.order[i] = to
			break
		}
	}
	return nil
}

// List returns the profiles in insertion order
func (c *Collection) List() []Profile {
	out := make([]Profile, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.items[name])
	}
	return out
}

// Len returns the number of profiles
func (c *Collection) Len() int {
	return len(c.order)
}
