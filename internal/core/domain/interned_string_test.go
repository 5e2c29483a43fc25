package domain_test

import (
	"encoding/json"
	"testing"

	"go.trai.ch/lpkg/internal/core/domain"
)

func TestInternedString(t *testing.T) {
	s1 := "lfs/binutils"
	s2 := "lfs/binutils"

	is1 := domain.NewInternedString(s1)
	is2 := domain.NewInternedString(s2)

	if is1 != is2 {
		t.Errorf("Expected handles to be equal for identical strings, got %v and %v", is1, is2)
	}

	if is1.String() != s1 {
		t.Errorf("Expected String() to return %q, got %q", s1, is1.String())
	}
}

func TestInternedStringZeroValue(t *testing.T) {
	var zero domain.InternedString
	if zero.String() != "" {
		t.Errorf("Expected zero value to render empty, got %q", zero.String())
	}
	if !zero.IsZero() {
		t.Error("Expected zero value to report IsZero")
	}
	if !domain.NewInternedString("").IsZero() {
		t.Error("Expected empty string to report IsZero")
	}
	if zero.Compare(domain.NewInternedString("")) != 0 {
		t.Error("Expected zero value to compare equal to the empty string")
	}
}

func TestInternedStringCompare(t *testing.T) {
	a := domain.NewInternedString("pass-1")
	b := domain.NewInternedString("pass-2")

	if a.Compare(b) >= 0 {
		t.Errorf("Expected %q < %q", a, b)
	}
	if b.Compare(a) <= 0 {
		t.Errorf("Expected %q > %q", b, a)
	}
	if a.Compare(domain.NewInternedString("pass-1")) != 0 {
		t.Errorf("Expected %q to equal itself", a)
	}
}

func TestInternedStringJSON(t *testing.T) {
	t.Run("Marshal and Unmarshal preserve string value", func(t *testing.T) {
		original := domain.NewInternedString("mlfs/gcc")

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Failed to marshal InternedString: %v", err)
		}

		expectedJSON := `"mlfs/gcc"`
		if string(data) != expectedJSON {
			t.Errorf("Expected JSON %q, got %q", expectedJSON, string(data))
		}

		var unmarshaled domain.InternedString
		if err := json.Unmarshal(data, &unmarshaled); err != nil {
			t.Fatalf("Failed to unmarshal InternedString: %v", err)
		}

		if unmarshaled != original {
			t.Errorf("Expected unmarshaled value %q to equal original %q", unmarshaled, original)
		}
	})

	t.Run("Works as map key in JSON", func(t *testing.T) {
		original := map[domain.InternedString]int{
			domain.NewInternedString("pass-1"): 1,
			domain.NewInternedString("pass-2"): 2,
		}

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Failed to marshal map: %v", err)
		}

		var unmarshaled map[domain.InternedString]int
		if err := json.Unmarshal(data, &unmarshaled); err != nil {
			t.Fatalf("Failed to unmarshal map: %v", err)
		}

		if unmarshaled[domain.NewInternedString("pass-2")] != 2 {
			t.Errorf("Expected pass-2 to map to 2, got %v", unmarshaled)
		}
	})
}
