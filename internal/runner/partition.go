package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrPartitionSpec = errors.New("runner: invalid partition spec")

// Partition selects one contiguous shard of the run plan. Index is 1-based;
// runs outside the shard are logged as skipped but still advance the
// progress counter, so the union of all shards is the full plan with no
// overlap.
type Partition struct {
	Index int
	Count int
}

// ParsePartition reads an "m/n" spec and validates 0 < m <= n.
func ParsePartition(raw string) (*Partition, error) {
	m, n, found := strings.Cut(strings.TrimSpace(raw), "/")
	if !found {
		return nil, fmt.Errorf("%w: %q is not m/n", ErrPartitionSpec, raw)
	}
	index, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil {
		return nil, fmt.Errorf("%w: bad index in %q", ErrPartitionSpec, raw)
	}
	count, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return nil, fmt.Errorf("%w: bad count in %q", ErrPartitionSpec, raw)
	}
	p := &Partition{Index: index, Count: count}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Partition) Validate() error {
	if p.Count < 1 || p.Index < 1 || p.Index > p.Count {
		return fmt.Errorf("%w: need 0 < index <= count, got %d/%d", ErrPartitionSpec, p.Index, p.Count)
	}
	return nil
}

// Owns reports whether the run at the given 0-based ordinal belongs to this
// shard. Shards are contiguous chunks of ceil(total/count) ordinals.
func (p *Partition) Owns(ordinal, total int) bool {
	if total <= 0 {
		return false
	}
	chunk := (total + p.Count - 1) / p.Count
	return ordinal/chunk == p.Index-1
}
