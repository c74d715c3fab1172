// ABOUTME: Version and product identity constants
// ABOUTME: Reported by the demo player at startup
package version

const (
	// Version is the player software version
	Version = "0.1.0"

	// Product is the product name reported at startup
	Product = "Weavesong Player"

	// Manufacturer identifies the project
	Manufacturer = "Weavesong"
)
