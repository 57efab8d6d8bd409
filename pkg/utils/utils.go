// Package utils provides small generic helpers shared across the module.
package utils

// Must returns obj, panicking when err is non-nil. Reserve it for
// initialization paths where failure is unrecoverable.
func Must[T any](obj T, err error) T {
	if err != nil {
		panic(err)
	}
	return obj
}

// ToPtr returns a pointer to v.
func ToPtr[T any](v T) *T {
	return &v
}
