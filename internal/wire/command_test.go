package wire

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		payload  string
		category string
		action   string
		args     []string
	}{
		{"PMCREA_My\tProject", "PM", "CREA", []string{"My\tProject"}},
		{"PMINFO", "PM", "INFO", nil},
		{"PMINFO_42", "PM", "INFO", []string{"42"}},
		{"PATASK_STAT_7_101_102", "PA", "TASK", []string{"STAT", "7", "101", "102"}},
		{"PADABA_7_START", "PA", "DABA", []string{"7", "START"}},
	}
	for _, tt := range tests {
		cmd, err := SplitCommand(tt.payload)
		if err != nil {
			t.Fatalf("SplitCommand(%q): %v", tt.payload, err)
		}
		if cmd.Category != tt.category || cmd.Action != tt.action {
			t.Errorf("SplitCommand(%q) prefix = %s%s, want %s%s",
				tt.payload, cmd.Category, cmd.Action, tt.category, tt.action)
		}
		if !reflect.DeepEqual(cmd.Args, tt.args) {
			t.Errorf("SplitCommand(%q) args = %q, want %q", tt.payload, cmd.Args, tt.args)
		}
	}
}

func TestSplitCommandTooShort(t *testing.T) {
	for _, payload := range []string{"", "PM", "PMCRE"} {
		if _, err := SplitCommand(payload); err == nil {
			t.Errorf("SplitCommand(%q): expected error", payload)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	names := []string{"My_Project", "no-underscores", "_", "a_b_c", ""}
	for _, name := range names {
		if got := Unescape(Escape(name)); got != name {
			t.Errorf("Unescape(Escape(%q)) = %q", name, got)
		}
	}
}

func TestEscapedArgumentSurvivesSplit(t *testing.T) {
	cmd, err := SplitCommand(Join(CategoryProjectManagement, ActionCreate, "My_Project"))
	if err != nil {
		t.Fatalf("SplitCommand: %v", err)
	}
	if len(cmd.Args) != 1 {
		t.Fatalf("args = %q, want exactly one", cmd.Args)
	}
	if got := Unescape(cmd.Args[0]); got != "My_Project" {
		t.Errorf("unescaped arg = %q, want %q", got, "My_Project")
	}
}

func TestJoinWithoutArgs(t *testing.T) {
	if got := Join(CategoryProjectManagement, ActionInfo); got != "PMINFO" {
		t.Errorf("Join = %q, want PMINFO", got)
	}
}
