package question

import "testing"

func TestSubstitute(t *testing.T) {
	a := Assignment{"x": IntValue(1), "y": IntValue(2), "dir": StrValue("E")}

	out, unresolved := Substitute("What is {x} + {y}?", a)
	if out != "What is 1 + 2?" {
		t.Fatalf("got %q", out)
	}
	if len(unresolved) != 0 {
		t.Fatalf("unexpected unresolved: %v", unresolved)
	}

	out, _ = Substitute("Heading {dir}, then {dir} again", a)
	if out != "Heading E, then E again" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteUnresolvedStaysLiteral(t *testing.T) {
	a := Assignment{"x": IntValue(1)}
	out, unresolved := Substitute("{x} and {missing}", a)
	if out != "1 and {missing}" {
		t.Fatalf("got %q", out)
	}
	if len(unresolved) != 1 || unresolved[0] != "missing" {
		t.Fatalf("unresolved = %v, want [missing]", unresolved)
	}
}
