//go:build !race

package auth

func passwordIterations() int {
	return DefaultPasswordIterations
}
