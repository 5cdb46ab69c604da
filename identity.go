package svcmock

import "sync/atomic"

// serialIdentity is the default identity generator: a registry-local,
// monotonically increasing counter starting at 1.
type serialIdentity struct {
	counter atomic.Int64
}

func newSerialIdentity() *serialIdentity {
	return &serialIdentity{}
}

func (g *serialIdentity) Next() int64 {
	return g.counter.Add(1)
}
