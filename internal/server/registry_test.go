package server

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"testing"
)

func newTestHub() *Hub {
	return NewHub(DefaultConfig())
}

// newTestClient builds a client over a net.Pipe without starting its pumps,
// so registry state can be driven directly.
func newTestClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})
	return newClient(local, h)
}

// TestRegisterAndUsers verifies registration, the Users snapshot ordering,
// and rejection of double registration.
func TestRegisterAndUsers(t *testing.T) {
	h := newTestHub()
	r := h.Registry()
	bob := newTestClient(t, h)
	alice := newTestClient(t, h)

	if _, err := r.Register(bob, "bob"); err != nil {
		t.Fatalf("Register(bob) failed: %v", err)
	}
	sid, err := r.Register(alice, "alice")
	if err != nil {
		t.Fatalf("Register(alice) failed: %v", err)
	}
	if sid.String() == "" {
		t.Error("Register returned empty session ID")
	}

	if _, err := r.Register(alice, "alice2"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register error = %v, want ErrAlreadyRegistered", err)
	}

	want := []string{"alice", "bob"}
	if got := r.Users(); !reflect.DeepEqual(got, want) {
		t.Errorf("Users() = %v, want %v", got, want)
	}
}

// TestJoinLeaveBidirectional verifies the membership invariant in both
// directions: after JoinGroup the session is a member and appears in the
// group's member view, and the inverse holds after LeaveGroup.
func TestJoinLeaveBidirectional(t *testing.T) {
	h := newTestHub()
	r := h.Registry()
	alice := newTestClient(t, h)
	if _, err := r.Register(alice, "alice"); err != nil {
		t.Fatal(err)
	}

	info, _, err := r.JoinGroup(alice, ParseGroupRef("2"))
	if err != nil {
		t.Fatalf("JoinGroup(2) failed: %v", err)
	}
	if info.Name != "group2" || info.ID != 2 {
		t.Errorf("JoinGroup(2) = %+v, want ID 2 group2", info)
	}
	if !r.IsMember(alice, 2) {
		t.Error("IsMember false after JoinGroup")
	}
	if _, names, err := r.GroupMembers(alice, ParseGroupRef("group2")); err != nil || len(names) != 1 || names[0] != "alice" {
		t.Errorf("GroupMembers = %v, %v; want [alice]", names, err)
	}

	if _, _, err := r.LeaveGroup(alice, ParseGroupRef("group2")); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if r.IsMember(alice, 2) {
		t.Error("IsMember true after LeaveGroup")
	}
	if _, _, err := r.LeaveGroup(alice, ParseGroupRef("2")); !errors.Is(err, ErrNotMember) {
		t.Errorf("LeaveGroup twice error = %v, want ErrNotMember", err)
	}
	if _, _, err := r.JoinGroup(alice, ParseGroupRef("nosuch")); !errors.Is(err, ErrNotFound) {
		t.Errorf("JoinGroup(nosuch) error = %v, want ErrNotFound", err)
	}
}

// TestUnregisterScrubsMemberships verifies that removing a session also
// removes its handle from every group it joined, and that Unregister is
// idempotent.
func TestUnregisterScrubsMemberships(t *testing.T) {
	h := newTestHub()
	r := h.Registry()
	alice := newTestClient(t, h)
	bob := newTestClient(t, h)
	for name, c := range map[string]*Client{"alice": alice, "bob": bob} {
		if _, err := r.Register(c, name); err != nil {
			t.Fatal(err)
		}
	}
	for _, ref := range []string{"1", "3"} {
		if _, _, err := r.JoinGroup(alice, ParseGroupRef(ref)); err != nil {
			t.Fatal(err)
		}
		if _, _, err := r.JoinGroup(bob, ParseGroupRef(ref)); err != nil {
			t.Fatal(err)
		}
	}

	name, ok := r.Unregister(alice)
	if !ok || name != "alice" {
		t.Fatalf("Unregister = %q, %v; want alice, true", name, ok)
	}
	for _, id := range []int{1, 3} {
		if _, names, err := r.GroupMembers(bob, ParseGroupRef(fmt.Sprint(id))); err != nil || len(names) != 1 || names[0] != "bob" {
			t.Errorf("group %d members after unregister = %v, %v; want [bob]", id, names, err)
		}
	}
	if got := r.Users(); len(got) != 1 || got[0] != "bob" {
		t.Errorf("Users() after unregister = %v, want [bob]", got)
	}

	if _, ok := r.Unregister(alice); ok {
		t.Error("second Unregister reported a removed session")
	}
}

// TestRecipientsExcludesSender verifies the broadcast snapshot leaves out
// the excluded handle.
func TestRecipientsExcludesSender(t *testing.T) {
	h := newTestHub()
	r := h.Registry()
	alice := newTestClient(t, h)
	bob := newTestClient(t, h)
	carol := newTestClient(t, h)
	for name, c := range map[string]*Client{"alice": alice, "bob": bob, "carol": carol} {
		if _, err := r.Register(c, name); err != nil {
			t.Fatal(err)
		}
	}

	recips := r.Recipients(alice)
	if len(recips) != 2 {
		t.Fatalf("Recipients returned %d clients, want 2", len(recips))
	}
	for _, c := range recips {
		if c == alice {
			t.Error("Recipients included the excluded sender")
		}
	}
}

// TestGroupAccessRequiresMembership verifies that group reads and posts are
// denied to registered non-members.
func TestGroupAccessRequiresMembership(t *testing.T) {
	h := newTestHub()
	r := h.Registry()
	alice := newTestClient(t, h)
	if _, err := r.Register(alice, "alice"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := r.GroupMembers(alice, ParseGroupRef("1")); !errors.Is(err, ErrNotMember) {
		t.Errorf("GroupMembers error = %v, want ErrNotMember", err)
	}
	if _, _, _, err := r.GroupForPost(alice, ParseGroupRef("1")); !errors.Is(err, ErrNotMember) {
		t.Errorf("GroupForPost error = %v, want ErrNotMember", err)
	}
	if _, _, err := r.GroupLog(alice, ParseGroupRef("1")); !errors.Is(err, ErrNotMember) {
		t.Errorf("GroupLog error = %v, want ErrNotMember", err)
	}
	if _, _, _, err := r.GroupForPost(alice, ParseGroupRef("99")); !errors.Is(err, ErrNotFound) {
		t.Errorf("GroupForPost(99) error = %v, want ErrNotFound", err)
	}
}

// TestAddGroupAtRuntime verifies catalog additions get fresh IDs and
// duplicate names are refused.
func TestAddGroupAtRuntime(t *testing.T) {
	h := newTestHub()
	r := h.Registry()

	info, added := r.AddGroup("announcements")
	if !added || info.ID != 6 {
		t.Fatalf("AddGroup = %+v, %v; want ID 6, true", info, added)
	}
	if _, added := r.AddGroup("group1"); added {
		t.Error("AddGroup accepted a duplicate name")
	}
	groups := r.ListGroups()
	if len(groups) != 6 || groups[5].Name != "announcements" {
		t.Errorf("ListGroups = %v, want 6 entries ending in announcements", groups)
	}
}

// TestConcurrentJoinLeaveConsistency hammers membership mutation from many
// goroutines and then checks the bidirectional invariant still holds.
func TestConcurrentJoinLeaveConsistency(t *testing.T) {
	h := newTestHub()
	r := h.Registry()

	const workers = 10
	clients := make([]*Client, workers)
	for i := range clients {
		clients[i] = newTestClient(t, h)
		if _, err := r.Register(clients[i], fmt.Sprintf("user%02d", i)); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ref := ParseGroupRef(fmt.Sprint(i%5 + 1))
				if _, _, err := r.JoinGroup(c, ref); err != nil {
					t.Errorf("JoinGroup failed: %v", err)
					return
				}
				if i%2 == 0 {
					if _, _, err := r.LeaveGroup(c, ref); err != nil {
						t.Errorf("LeaveGroup failed: %v", err)
						return
					}
				}
			}
		}(c)
	}
	wg.Wait()

	for gid := 1; gid <= 5; gid++ {
		for i, c := range clients {
			member := r.IsMember(c, gid)
			_, _, err := r.GroupLog(c, ParseGroupRef(fmt.Sprint(gid)))
			if member && err != nil {
				t.Errorf("user%02d IsMember(%d) true but group access denied: %v", i, gid, err)
			}
			if !member && err == nil {
				t.Errorf("user%02d IsMember(%d) false but group access allowed", i, gid)
			}
		}
	}
}
