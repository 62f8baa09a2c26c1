package extraction

import "testing"

func TestExtractValue(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		hasValue bool
		value    float64
		unit     string
	}{
		{"decimal with unit", "Hemoglobin: 13.5 g/dL", true, 13.5, "g/dl"},
		{"integer without unit", "WBC 7800", true, 7800, ""},
		{"no numbers", "no numbers here", false, 0, ""},
		{"decimal preferred over earlier integer", "Line 3 value 4.25 mg/dL", true, 4.25, "mg/dl"},
		{"hyphen separator is not a sign", "Glucose-130 mg/dL", true, 130, "mg/dl"},
		{"standalone minus kept", "delta -5.5", true, -5.5, ""},
		{"mg/dl wins over g/dl", "urea 30 mg/dl", true, 30, "mg/dl"},
		{"micro units folded", "TSH 2.5 \u03bcIU/mL", true, 2.5, "\u00b5iu/ml"},
		{"superscript exponent", "WBC 7.2 ×10⁹/L", true, 7.2, "×10^9/l"},
		{"caret exponent", "WBC 7.2 x10^9/L", true, 7.2, "×10^9/l"},
		{"platelet exponent", "Platelets 250 ×10³/µL", true, 250, "×10^3/µl"},
		{"platelet caret exponent", "Platelets 250 10^3/uL", true, 250, "×10^3/µl"},
		{"percent", "HbA1c 6.1 %", true, 6.1, "%"},
		{"unit without value", "units mmol/L only", false, 0, "mmol/l"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractValue(tt.in)
			if got.HasValue != tt.hasValue {
				t.Fatalf("HasValue: expected %v, got %v", tt.hasValue, got.HasValue)
			}
			if tt.hasValue && got.Number != tt.value {
				t.Errorf("value: expected %v, got %v", tt.value, got.Number)
			}
			if got.Unit != tt.unit {
				t.Errorf("unit: expected %q, got %q", tt.unit, got.Unit)
			}
		})
	}
}

func TestFirstNumberToken(t *testing.T) {
	tests := []struct {
		in    string
		ok    bool
		value float64
	}{
		{"Hb, 13.5 g/dL", true, 13.5},
		{"Result: -2.5;", true, -2.5},
		{"fasting glucose - 130 mg/dl", true, 130},
		{"1,234 cells", true, 1},
		{"no digits at all", false, 0},
		{"-- : ;", false, 0},
	}
	for _, tt := range tests {
		got, ok := FirstNumberToken(tt.in)
		if ok != tt.ok {
			t.Errorf("%q: expected ok=%v, got %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && got != tt.value {
			t.Errorf("%q: expected %v, got %v", tt.in, tt.value, got)
		}
	}
}
