package element

import (
	"strconv"

	"github.com/google/uuid"
)

// NewID returns a random UUID string. It is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

// SequenceIDs returns an IDFunc yielding prefix-1, prefix-2, ... for tests and
// offline tooling where stable ids matter. It is not safe for concurrent use.
func SequenceIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
