package restree

import (
	"errors"
	"strings"
	"testing"
)

func TestDiagnostics_Collect(t *testing.T) {
	var diags Diagnostics
	if diags.HasFatal() || diags.Err() != nil || diags.Len() != 0 {
		t.Fatal("zero value should be empty")
	}

	diags.Warn(DiagGetReturnsVoid, "GET /a", "returns %s", "void")
	if diags.HasFatal() || diags.Err() != nil {
		t.Error("warnings must not fail the pass")
	}

	diags.Fatal(DiagLocatorReturnsVoid, "LOCATOR /b", "locator returns void")
	if !diags.HasFatal() {
		t.Error("expected HasFatal after a fatal diagnostic")
	}
	if len(diags.Warnings()) != 1 || len(diags.Fatals()) != 1 || diags.Len() != 2 {
		t.Errorf("unexpected counts: %v", diags.All())
	}

	err := diags.Err()
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	if len(buildErr.Diagnostics) != 2 {
		t.Errorf("BuildError should carry warnings too, got %v", buildErr.Diagnostics)
	}
	if msg := err.Error(); !strings.Contains(msg, "1 fatal issue") || !strings.Contains(msg, "LOCATOR /b") || strings.Contains(msg, "GET /a") {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestDiagnostics_AllReturnsCopy(t *testing.T) {
	var diags Diagnostics
	diags.Warn(DiagGetReturnsVoid, "s", "m")
	all := diags.All()
	all[0].Message = "changed"
	if diags.All()[0].Message != "m" {
		t.Error("All should return a copy")
	}
}

func TestDiagnostics_Guard(t *testing.T) {
	var diags Diagnostics
	ran := false
	diags.Guard("param 1", func() {
		diags.Warn(DiagParameterNotConcrete, "param 1", "before panic")
		panic(errors.New("bad type"))
	})
	diags.Guard("param 2", func() { ran = true })

	if !ran {
		t.Error("Guard should not stop later checks")
	}
	all := diags.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", all)
	}
	if all[1].Code != DiagInternal || !all[1].Fatal() || all[1].Subject != "param 1" {
		t.Errorf("unexpected internal diagnostic %+v", all[1])
	}
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Severity: SeverityFatal, Code: DiagDuplicateLocator, Subject: "/a", Message: "two locators"}
	if got, want := d.String(), "fatal [duplicate_locator] /a: two locators"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if Severity(0).String() != "unknown" || SeverityWarning.String() != "warning" {
		t.Error("unexpected severity strings")
	}
}
