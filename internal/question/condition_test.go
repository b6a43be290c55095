package question

import "testing"

func TestParseConditionSingleClause(t *testing.T) {
	cond, err := ParseCondition("direction === E")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if len(cond) != 1 || cond[0].Var != "direction" || cond[0].Literal != "E" {
		t.Fatalf("got %+v", cond)
	}
}

func TestParseConditionConjunction(t *testing.T) {
	cond, err := ParseCondition("a === 1 && b === yes")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if len(cond) != 2 {
		t.Fatalf("got %d clauses, want 2", len(cond))
	}
	if cond[1].Var != "b" || cond[1].Literal != "yes" {
		t.Fatalf("second clause = %+v", cond[1])
	}
}

func TestParseConditionRejects(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"a === 1 || b === 2",
		"a !== 1",
		"a != 1",
		"a == 1",
		"just a string",
		"a === ",
		" === 1",
		"a < 1",
		"(a === 1)",
	}
	for _, s := range bad {
		if _, err := ParseCondition(s); err == nil {
			t.Errorf("ParseCondition(%q): expected error", s)
		}
	}
}

func TestConditionMatchesCaseInsensitive(t *testing.T) {
	cond, err := ParseCondition("direction === E")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if !cond.Matches(Assignment{"direction": StrValue("e")}) {
		t.Fatal("lowercase e should match literal E")
	}
	if cond.Matches(Assignment{"direction": StrValue("W")}) {
		t.Fatal("W should not match E")
	}
}

func TestConditionMatchesLooseNumeric(t *testing.T) {
	cond, err := ParseCondition("n === 07")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if !cond.Matches(Assignment{"n": IntValue(7)}) {
		t.Fatal("sampled 7 should match literal 07 numerically")
	}
	if cond.Matches(Assignment{"n": IntValue(8)}) {
		t.Fatal("8 should not match 07")
	}
}

func TestConditionMatchesMissingVariable(t *testing.T) {
	cond, err := ParseCondition("missing === 1")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if cond.Matches(Assignment{"other": IntValue(1)}) {
		t.Fatal("condition on unassigned variable must not match")
	}
}

func TestConditionConjunctionAllMustHold(t *testing.T) {
	cond, err := ParseCondition("a === 1 && b === 2")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if !cond.Matches(Assignment{"a": IntValue(1), "b": IntValue(2)}) {
		t.Fatal("both clauses hold, should match")
	}
	if cond.Matches(Assignment{"a": IntValue(1), "b": IntValue(3)}) {
		t.Fatal("second clause fails, should not match")
	}
}
