package gid

import (
	"fmt"
	"hash/maphash"

	"github.com/puzpuzpuz/xsync/v2"
)

// Pool hands out one generator per machine id for processes that mint IDs
// for several logical shards. Callers still own the contract that no other
// process uses the same machine ids.
type Pool struct {
	generators *xsync.MapOf[int, *Generator]
	opts       []Option
}

func NewPool(opts ...Option) *Pool {
	return &Pool{
		generators: xsync.NewTypedMapOf[int, *Generator](func(seed maphash.Seed, k int) uint64 {
			return uint64(k)
		}),
		opts: opts,
	}
}

// Get returns the generator for machineID, creating it on first use.
func (p *Pool) Get(machineID int) (*Generator, error) {
	if machineID < 0 || machineID > MaxMachineID {
		return nil, fmt.Errorf("%w: machine ID %d must be between 0 and %d", ErrInvalidConfiguration, machineID, MaxMachineID)
	}
	g, _ := p.generators.LoadOrCompute(machineID, func() *Generator {
		g, _ := NewGenerator(machineID, p.opts...)
		return g
	})
	return g, nil
}

// Generate mints an ID on the shard identified by machineID.
func (p *Pool) Generate(machineID int) (uint64, error) {
	g, err := p.Get(machineID)
	if err != nil {
		return 0, err
	}
	return g.Generate()
}

// Size reports how many shards have been materialized.
func (p *Pool) Size() int {
	return p.generators.Size()
}
