//go:build dev

package memory

// DefaultStrictIO is the I/O strictness of a new MMU.
const DefaultStrictIO = true
