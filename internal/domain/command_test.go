package domain

import "testing"

func TestAllCommands_HaveDescriptions(t *testing.T) {
	seen := make(map[Command]bool)
	for _, cmd := range AllCommands() {
		if seen[cmd] {
			t.Fatalf("command %q listed twice", cmd)
		}
		seen[cmd] = true
		if cmd.Description() == "" {
			t.Fatalf("command %q has no description", cmd)
		}
	}
}

func TestCommand_IsOperation(t *testing.T) {
	tests := []struct {
		cmd  Command
		want bool
	}{
		{CommandMerge, true},
		{CommandSplit, true},
		{CommandCompress, true},
		{CommandToImage, true},
		{CommandToPNG, true},
		{CommandToJPG, true},
		{CommandToPDF, true},
		{CommandStart, false},
		{CommandHelp, false},
		{CommandCancel, false},
		{CommandStats, false},
		{Command("bogus"), false},
	}

	for _, tt := range tests {
		if got := tt.cmd.IsOperation(); got != tt.want {
			t.Fatalf("%q.IsOperation() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}
