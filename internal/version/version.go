// ABOUTME: Version information for pcmbridge
// ABOUTME: Product identity shown in the TUI and stream hello
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "pcmbridge"

	// Manufacturer identifies the maintainers
	Manufacturer = "Resonate"
)
