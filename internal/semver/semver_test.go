package semver

import "testing"

func TestParseAndString(t *testing.T) {
	v, err := Parse("1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 {
		t.Fatalf("parsed = %+v", v)
	}
	if v.String() != "1.2.3" {
		t.Fatalf("String() = %q", v.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"1.2", "1.2.3.4", "a.b.c", "-1.0.0"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("expected error parsing %q", c)
		}
	}
}

func TestCompare(t *testing.T) {
	a, _ := Parse("1.2.3")
	b, _ := Parse("1.3.0")
	if a.Compare(b) != -1 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) != 1 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected equal versions to compare 0")
	}
}

func TestBumpPatch(t *testing.T) {
	v, _ := Parse("1.2.3")
	out, err := v.Bump(BumpPatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "1.2.4" {
		t.Fatalf("got %s", out.String())
	}
}

func TestBumpMinorResetsPatch(t *testing.T) {
	v, _ := Parse("1.2.3")
	out, _ := v.Bump(BumpMinor)
	if out.String() != "1.3.0" {
		t.Fatalf("got %s", out.String())
	}
}

func TestBumpMajorResetsMinorAndPatch(t *testing.T) {
	v, _ := Parse("1.2.3")
	out, _ := v.Bump(BumpMajor)
	if out.String() != "2.0.0" {
		t.Fatalf("got %s", out.String())
	}
}

func TestBumpUnknownKind(t *testing.T) {
	v, _ := Parse("1.0.0")
	if _, err := v.Bump(Bump("oops")); err == nil {
		t.Fatal("expected error for unknown bump kind")
	}
}
