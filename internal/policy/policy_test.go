package policy

import "testing"

func TestIsSentinel(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact", SentinelText, true},
		{"case insensitive", "1. NO VERIFIED LIMITATIONS FOUND WITHIN THE SPECIFIED SCOPE.", true},
		{"whitespace collapsed", "1.  No verified\nlimitations found   within the specified scope. ", true},
		{"different text", "1. One real limitation.", false},
		{"sentinel with extra item", SentinelText + "\n2. Something else.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSentinel(tt.text); got != tt.want {
				t.Errorf("IsSentinel(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAllowedControlsClosedSet(t *testing.T) {
	if !AllowedControls["audit-trail"] {
		t.Error("audit-trail must be allowed")
	}
	if AllowedControls["velocity"] {
		t.Error("unknown control must not be allowed")
	}
	if len(AllowedControls) != 15 {
		t.Errorf("Expected 15 control tags, got %d", len(AllowedControls))
	}
}

func TestModuleAliasesPointAtCanonicalLabels(t *testing.T) {
	canonical := make(map[string]bool, len(ModulesOrdered))
	for _, label := range ModulesOrdered {
		canonical[label] = true
	}
	for alias, label := range ModuleAliases {
		if !canonical[label] {
			t.Errorf("Alias %q maps to non-canonical label %q", alias, label)
		}
	}
}
