// Package server maintains the group catalog: stable numeric IDs, unique
// names, member sets, and one message log per group.
package server

import "sort"

// Group is one topical group. The member set is guarded by the owning
// registry's mutex; the message log has its own lock and its pointer is
// stable for the process lifetime, so it may be used outside the registry
// lock once copied out.
type Group struct {
	ID      int
	Name    string
	members map[*Client]struct{}
	log     *Log
}

// Log returns the group's message log.
func (g *Group) Log() *Log {
	return g.log
}

// GroupInfo is the lock-free view of a group handed out by the registry.
type GroupInfo struct {
	ID   int
	Name string
}

// directory indexes groups by ID and by name. It is always manipulated
// under the registry's mutex.
type directory struct {
	groups map[int]*Group
	names  map[string]int
	nextID int
}

func newDirectory() *directory {
	return &directory{
		groups: make(map[int]*Group),
		names:  make(map[string]int),
		nextID: 1,
	}
}

// add creates a group with the next free ID. It reports false when the name
// is already taken; groups are never removed or renamed.
func (d *directory) add(name string) (*Group, bool) {
	if _, exists := d.names[name]; exists {
		return nil, false
	}
	g := &Group{
		ID:      d.nextID,
		Name:    name,
		members: make(map[*Client]struct{}),
		log:     NewLog(),
	}
	d.nextID++
	d.groups[g.ID] = g
	d.names[g.Name] = g.ID
	return g, true
}

// resolve looks a group up by the typed reference: numeric references are
// matched against IDs, everything else against exact names.
func (d *directory) resolve(ref GroupRef) (*Group, bool) {
	if id, ok := ref.ID(); ok {
		g, exists := d.groups[id]
		return g, exists
	}
	id, exists := d.names[ref.Name()]
	if !exists {
		return nil, false
	}
	return d.groups[id], true
}

// list returns every group ordered by ID.
func (d *directory) list() []GroupInfo {
	out := make([]GroupInfo, 0, len(d.groups))
	for _, g := range d.groups {
		out = append(out, GroupInfo{ID: g.ID, Name: g.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
