//go:build !dev

package memory

// DefaultStrictIO is the I/O strictness of a new MMU. Build with -tags dev to
// make unmapped I/O registers fault unless WithStrictIO(false) is given.
const DefaultStrictIO = false
