package utils

import "testing"

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		wantErr bool
	}{
		{"valid", "Create a counter", false},
		{"empty", "", true},
		{"whitespace only", "   \n\t", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrompt(tt.prompt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrompt(%q) error = %v, wantErr %v", tt.prompt, err, tt.wantErr)
			}
		})
	}
}

func TestValidateToolID(t *testing.T) {
	tests := []struct {
		name    string
		toolID  string
		wantErr bool
	}{
		{"calendar", "google_calendar", false},
		{"gmail", "gmail", false},
		{"empty", "", true},
		{"uppercase", "Gmail", true},
		{"path traversal", "../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolID(tt.toolID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToolID(%q) error = %v, wantErr %v", tt.toolID, err, tt.wantErr)
			}
		})
	}
}
