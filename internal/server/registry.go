// Package server tracks connected sessions and their group memberships. The
// Registry is the single source of truth for "who is connected" and "who is
// where"; one mutex covers the session map and every group's member set so
// membership views are never torn.
package server

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Session is the registry's record for one connected client. The display
// name is set once at registration and never changes.
type Session struct {
	ID     uuid.UUID
	Name   string
	joined map[int]struct{}
}

// Registry maps connection handles to sessions and owns the group
// directory. All mutations are serialized by a single mutex; methods that
// feed the broadcast engine copy recipient snapshots out under the lock and
// never perform I/O while holding it.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Client]*Session
	dir      *directory
	board    *Log
}

// NewRegistry builds a registry seeded with the given group catalog.
// Duplicate catalog names are ignored.
func NewRegistry(groups []string) *Registry {
	r := &Registry{
		sessions: make(map[*Client]*Session),
		dir:      newDirectory(),
		board:    NewLog(),
	}
	for _, name := range groups {
		r.dir.add(name)
	}
	return r
}

// Board returns the global message log. The pointer is stable, so callers
// may append and read without involving the registry lock.
func (r *Registry) Board() *Log {
	return r.board
}

// Register creates a session for the handle. It fails with
// ErrAlreadyRegistered when the handle already has one.
func (r *Registry) Register(c *Client, name string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[c]; exists {
		return uuid.Nil, ErrAlreadyRegistered
	}
	s := &Session{
		ID:     uuid.New(),
		Name:   name,
		joined: make(map[int]struct{}),
	}
	r.sessions[c] = s
	return s.ID, nil
}

// Unregister removes the handle's session and scrubs it from every group it
// joined. It is idempotent and reports the removed display name.
func (r *Registry) Unregister(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[c]
	if !exists {
		return "", false
	}
	for id := range s.joined {
		if g, ok := r.dir.groups[id]; ok {
			delete(g.members, c)
		}
	}
	delete(r.sessions, c)
	return s.Name, true
}

// Registered reports whether the handle has a live session.
func (r *Registry) Registered(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[c]
	return ok
}

// Users returns the display names of all registered sessions, sorted, as a
// consistent point-in-time snapshot.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Recipients returns a snapshot of every registered handle except exclude.
func (r *Registry) Recipients(exclude *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, 0, len(r.sessions))
	for c := range r.sessions {
		if c != exclude {
			out = append(out, c)
		}
	}
	return out
}

// JoinGroup adds the handle to the referenced group and the group ID to the
// session's joined set, atomically. Joining a group twice is a no-op. The
// returned snapshot holds the other current members, for join notices.
func (r *Registry) JoinGroup(c *Client, ref GroupRef) (GroupInfo, []*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[c]
	if !exists {
		return GroupInfo{}, nil, ErrNotRegistered
	}
	g, found := r.dir.resolve(ref)
	if !found {
		return GroupInfo{}, nil, ErrNotFound
	}
	others := membersExcept(g, c)
	g.members[c] = struct{}{}
	s.joined[g.ID] = struct{}{}
	return GroupInfo{ID: g.ID, Name: g.Name}, others, nil
}

// LeaveGroup removes the handle from the referenced group, symmetric to
// JoinGroup. It fails with ErrNotMember when the session never joined.
func (r *Registry) LeaveGroup(c *Client, ref GroupRef) (GroupInfo, []*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[c]
	if !exists {
		return GroupInfo{}, nil, ErrNotRegistered
	}
	g, found := r.dir.resolve(ref)
	if !found {
		return GroupInfo{}, nil, ErrNotFound
	}
	if _, member := g.members[c]; !member {
		return GroupInfo{}, nil, ErrNotMember
	}
	delete(g.members, c)
	delete(s.joined, g.ID)
	return GroupInfo{ID: g.ID, Name: g.Name}, membersExcept(g, c), nil
}

// IsMember reports whether the handle currently belongs to the group.
func (r *Registry) IsMember(c *Client, groupID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[c]
	if !exists {
		return false
	}
	_, member := s.joined[groupID]
	return member
}

// GroupMembers returns the display names of the group's current members.
// The caller must itself be a member.
func (r *Registry) GroupMembers(c *Client, ref GroupRef) (GroupInfo, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.memberGroup(c, ref)
	if err != nil {
		return GroupInfo{}, nil, err
	}
	names := make([]string, 0, len(g.members))
	for m := range g.members {
		if s, ok := r.sessions[m]; ok {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return GroupInfo{ID: g.ID, Name: g.Name}, names, nil
}

// GroupForPost resolves a group post: it verifies membership and hands back
// the group's log plus a recipient snapshot excluding the sender, so the
// append and the fan-out both happen outside the registry lock.
func (r *Registry) GroupForPost(c *Client, ref GroupRef) (GroupInfo, *Log, []*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.memberGroup(c, ref)
	if err != nil {
		return GroupInfo{}, nil, nil, err
	}
	return GroupInfo{ID: g.ID, Name: g.Name}, g.log, membersExcept(g, c), nil
}

// GroupLog returns the referenced group's log for a member's read access.
func (r *Registry) GroupLog(c *Client, ref GroupRef) (GroupInfo, *Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.memberGroup(c, ref)
	if err != nil {
		return GroupInfo{}, nil, err
	}
	return GroupInfo{ID: g.ID, Name: g.Name}, g.log, nil
}

// ListGroups returns the full catalog ordered by ID.
func (r *Registry) ListGroups() []GroupInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.list()
}

// AddGroup registers a new group at runtime. It reports false when the name
// already exists; groups are never removed.
func (r *Registry) AddGroup(name string) (GroupInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, added := r.dir.add(name)
	if !added {
		return GroupInfo{}, false
	}
	return GroupInfo{ID: g.ID, Name: g.Name}, true
}

// memberGroup resolves ref and checks the caller's membership. Callers must
// hold r.mu.
func (r *Registry) memberGroup(c *Client, ref GroupRef) (*Group, error) {
	if _, exists := r.sessions[c]; !exists {
		return nil, ErrNotRegistered
	}
	g, found := r.dir.resolve(ref)
	if !found {
		return nil, ErrNotFound
	}
	if _, member := g.members[c]; !member {
		return nil, ErrNotMember
	}
	return g, nil
}

func membersExcept(g *Group, exclude *Client) []*Client {
	out := make([]*Client, 0, len(g.members))
	for m := range g.members {
		if m != exclude {
			out = append(out, m)
		}
	}
	return out
}
