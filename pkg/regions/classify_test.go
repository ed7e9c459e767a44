package regions

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Regions: map[string][]uint32{
			"SG": {44907, 62014},
			"US": {59930},
			"EU": {62041, 211157},
		},
	}
}

func TestClassifySkipsInvalidPrefixes(t *testing.T) {
	c, err := NewClassifier(testConfig())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	claims, skips, err := c.Classify(map[uint32][]string{
		44907: {"91.108.56.0/23", "not-a-prefix", "91.108.300.0/24"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("Expected 1 claim, got %d", len(claims))
	}
	if len(skips) != 2 {
		t.Fatalf("Expected 2 skips, got %d", len(skips))
	}
	if skips[0].Raw != "not-a-prefix" || skips[0].ASN != 44907 {
		t.Errorf("Unexpected skip record: %+v", skips[0])
	}
}

func TestClassifyUnknownASNIsFatal(t *testing.T) {
	c, err := NewClassifier(testConfig())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	_, _, err = c.Classify(map[uint32][]string{
		65000: {"91.108.56.0/23"},
	})
	if err == nil {
		t.Fatal("Expected error for unknown ASN, got nil")
	}
	if !strings.Contains(err.Error(), "AS65000") {
		t.Errorf("Error should name the ASN: %v", err)
	}
}

func TestClassifyDeduplicates(t *testing.T) {
	c, err := NewClassifier(testConfig())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	claims, _, err := c.Classify(map[uint32][]string{
		// Same prefix twice from one ASN and once from another ASN in the
		// same region collapses to one claim.
		44907: {"91.108.56.0/23", "91.108.56.0/23"},
		62014: {"91.108.56.0/23"},
		// Same prefix from an ASN in another region stays a separate claim.
		59930: {"91.108.56.0/23"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d: %+v", len(claims), claims)
	}
	regionsSeen := map[string]bool{}
	for _, cl := range claims {
		regionsSeen[cl.Region] = true
	}
	if !regionsSeen["SG"] || !regionsSeen["US"] {
		t.Errorf("Expected one SG and one US claim, got %+v", claims)
	}
}

func TestClassifyMasksHostBits(t *testing.T) {
	c, _ := NewClassifier(testConfig())
	claims, _, err := c.Classify(map[uint32][]string{
		59930: {"149.154.160.9/22"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(claims) != 1 || claims[0].Prefix.String() != "149.154.160.0/22" {
		t.Errorf("Expected canonical 149.154.160.0/22, got %+v", claims)
	}
}

func TestConfigDuplicateASN(t *testing.T) {
	cfg := Config{
		Regions: map[string][]uint32{
			"SG": {44907},
			"US": {44907},
		},
	}
	if _, err := NewClassifier(cfg); err == nil {
		t.Fatal("Expected error for ASN listed under two regions, got nil")
	}
}
