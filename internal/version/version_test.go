// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestVersionDefined(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestProductDefined(t *testing.T) {
	if Product != "pcmbridge" {
		t.Errorf("expected product pcmbridge, got %s", Product)
	}
}

func TestManufacturerDefined(t *testing.T) {
	if Manufacturer == "" {
		t.Error("Manufacturer should not be empty")
	}
}

func TestVersionFormat(t *testing.T) {
	// Semantic version without a leading v
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Errorf("expected major.minor.patch, got %s", Version)
	}
	if strings.HasPrefix(Version, "v") {
		t.Errorf("version should not carry a v prefix: %s", Version)
	}
}
