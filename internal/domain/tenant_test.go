package domain

import "testing"

func TestNormalizeMAC(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"AA-BB-CC-DD-EE-FF", "AA:BB:CC:DD:EE:FF"},
		{"  70:22:fe:03:c1:41 ", "70:22:FE:03:C1:41"},
		{"70:22:FE:03:C1:41", "70:22:FE:03:C1:41"},
	}
	for _, tc := range cases {
		if got := NormalizeMAC(tc.in); got != tc.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRegistrySnapshotEqual(t *testing.T) {
	a := RegistrySnapshot{Entries: []RegistryEntry{
		{ID: "123", MAC: "AA:BB:CC:DD:EE:FF"},
		{ID: "456", MAC: "11:22:33:44:55:66"},
	}}
	b := RegistrySnapshot{Entries: []RegistryEntry{
		{ID: "123", MAC: "AA:BB:CC:DD:EE:FF"},
		{ID: "456", MAC: "11:22:33:44:55:66"},
	}}
	if !a.Equal(b) {
		t.Fatal("identical snapshots reported unequal")
	}

	// Different ID for the same MAC.
	b.Entries[1].ID = "789"
	if a.Equal(b) {
		t.Fatal("snapshots with differing ids reported equal")
	}

	// Order matters: published output follows file order.
	c := RegistrySnapshot{Entries: []RegistryEntry{
		{ID: "456", MAC: "11:22:33:44:55:66"},
		{ID: "123", MAC: "AA:BB:CC:DD:EE:FF"},
	}}
	if a.Equal(c) {
		t.Fatal("reordered snapshots reported equal")
	}

	if !(RegistrySnapshot{}).Equal(RegistrySnapshot{}) {
		t.Fatal("empty snapshots should be equal")
	}
}
