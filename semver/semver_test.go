package semver

import "testing"

func TestSatisfies(t *testing.T) {
	c := MustParseConstraint("^1.2.0")

	if !Satisfies(MustParseVersion("1.2.0"), c) {
		t.Fatalf("expected 1.2.0 to satisfy ^1.2.0")
	}
	if !Satisfies(MustParseVersion("1.9.9"), c) {
		t.Fatalf("expected 1.9.9 to satisfy ^1.2.0")
	}
	if Satisfies(MustParseVersion("2.0.0"), c) {
		t.Fatalf("expected 2.0.0 to NOT satisfy ^1.2.0")
	}
	if Satisfies(Version{}, c) {
		t.Fatalf("expected zero version to satisfy nothing")
	}
}

func TestCaret(t *testing.T) {
	c, err := Caret(MustParseVersion("1.4.2"))
	if err != nil {
		t.Fatalf("Caret error: %v", err)
	}
	if c.String() != "^1.4.2" {
		t.Fatalf("expected ^1.4.2, got %q", c.String())
	}
	if Satisfies(MustParseVersion("1.4.1"), c) {
		t.Fatalf("expected 1.4.1 to NOT satisfy ^1.4.2")
	}
	if !Satisfies(MustParseVersion("1.5.0"), c) {
		t.Fatalf("expected 1.5.0 to satisfy ^1.4.2")
	}
	if _, err := Caret(Version{}); err == nil {
		t.Fatalf("expected error for empty version")
	}
}

func TestComparePrerelease(t *testing.T) {
	if Compare(MustParseVersion("1.0.0-beta"), MustParseVersion("1.0.0")) >= 0 {
		t.Fatalf("expected prerelease to sort before release")
	}
	if Compare(MustParseVersion("1.0.0+build1"), MustParseVersion("1.0.0+build2")) != 0 {
		t.Fatalf("expected build metadata to be ignored")
	}
}
