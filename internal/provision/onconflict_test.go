package provision

import "testing"

func TestParseOnConflict_Ignore(t *testing.T) {
	oc, err := ParseOnConflict("ignore:id,symbol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oc.Action != Ignore {
		t.Fatalf("expected Ignore, got %v", oc.Action)
	}
	if len(oc.Keys) != 2 || oc.Keys[0] != "id" || oc.Keys[1] != "symbol" {
		t.Fatalf("unexpected keys: %v", oc.Keys)
	}
}

func TestParseOnConflict_Upsert(t *testing.T) {
	oc, err := ParseOnConflict("upsert:id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oc.Action != Upsert {
		t.Fatalf("expected Upsert, got %v", oc.Action)
	}
}

func TestParseOnConflict_RejectsUnknownAction(t *testing.T) {
	if _, err := ParseOnConflict("merge:id"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseOnConflict_RejectsMissingColon(t *testing.T) {
	if _, err := ParseOnConflict("ignore"); err == nil {
		t.Fatal("expected error for missing colon")
	}
}

func TestParseOnConflict_RejectsEmptyColumn(t *testing.T) {
	if _, err := ParseOnConflict("ignore:id,,symbol"); err == nil {
		t.Fatal("expected error for empty column name")
	}
}
