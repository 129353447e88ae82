package pool

import (
	"math/rand"
)

// Selector chooses one handle among the ready set. The baseline behavior is
// uniform random selection; the interface leaves room for other policies.
type Selector interface {
	Select(handles []*Handle) *Handle
}

type randomSelector struct{}

func (randomSelector) Select(handles []*Handle) *Handle {
	if len(handles) == 0 {
		return nil
	}

	index := rand.Intn(len(handles))
	return handles[index]
}

func NewRandomSelector() Selector {
	return randomSelector{}
}
