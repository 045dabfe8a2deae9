package canonical

import "testing"

func TestSegment(t *testing.T) {
	tests := []struct {
		in   Path
		want string
	}{
		{"/Lotus/Upgrades/Mods/Fusers/PrimedFlow", "PrimedFlow"},
		{"PrimedFlow", "PrimedFlow"},
		{"/Lotus/Trailing/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := tt.in.Segment(); got != tt.want {
			t.Fatalf("Segment(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestEndsWithSegment(t *testing.T) {
	p := Path("/Lotus/Upgrades/Mods/Fusers/PrimedFlow")

	if !p.EndsWithSegment("PrimedFlow") {
		t.Fatalf("expected match on final segment")
	}
	if p.EndsWithSegment("Flow") {
		t.Fatalf("partial segment must not match")
	}
	if p.EndsWithSegment("") {
		t.Fatalf("empty segment must not match")
	}
	if p.EndsWithSegment("Fusers/PrimedFlow") {
		t.Fatalf("multi-segment input must not match")
	}
	if p.EndsWithSegment("PrimedFl.w") {
		t.Fatalf("segment must be compared literally")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(" /Lotus/StoreItems/Upgrades/Mods/Fusers/PrimedFlow ")
	if got != "/Lotus/Upgrades/Mods/Fusers/PrimedFlow" {
		t.Fatalf("unexpected normalized path %q", got)
	}
	if Normalize("/Lotus/Types/Items/Foo") != "/Lotus/Types/Items/Foo" {
		t.Fatalf("paths without StoreItems must be unchanged")
	}
	if SegmentOf("/Lotus/StoreItems/Types/Foo") != "Foo" {
		t.Fatalf("SegmentOf should return last segment")
	}
}
