//go:build race

package auth

func passwordIterations() int {
	// Race builds are slow enough that the default count trips test timeouts.
	return 10_000
}
