package normalize

import "testing"

func TestLanguageCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// ISO 639-1 codes (passthrough)
		{"en", "en"},
		{"de", "de"},
		{"fr", "fr"},
		// ISO 639-2 codes
		{"eng", "en"},
		{"deu", "de"},
		{"ger", "de"}, // bibliographic variant
		// Locale codes
		{"en-US", "en"},
		{"en_GB", "en"},
		{"de-AT", "de"},
		// Language names
		{"english", "en"},
		{"English", "en"},
		{"ENGLISH", "en"},
		{"german", "de"},
		{"German", "de"},
		// Legacy BCP 47 codes
		{"iw", "he"},
		{"in", "id"},
		// Edge cases
		{"", ""},
		{"  en  ", "en"},
		{"xyz", ""},
		{"unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := LanguageCode(tt.input)
			if result != tt.expected {
				t.Errorf("LanguageCode(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// ISO codes to display names
		{"en", "English"},
		{"de", "German"},
		{"fr", "French"},
		{"ja", "Japanese"},
		{"zh", "Chinese"},
		// Names normalized
		{"english", "English"},
		{"GERMAN", "German"},
		{"  french  ", "French"},
		// ISO 639-2 codes
		{"eng", "English"},
		{"deu", "German"},
		// Locale codes
		{"en-US", "English"},
		{"de-AT", "German"},
		// Edge cases
		{"", ""},
		{"xyz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Language(tt.input)
			if result != tt.expected {
				t.Errorf("Language(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
