package wallet

import (
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/protocol"
)

// Episode is one committed set of chains for a vendor.
type Episode struct {
	Commitment commitment.Commitment
	chains     [len(protocol.Denominations)]*hashchain.Chain
	next       [len(protocol.Denominations)]int32
}

// Spent is the value revealed so far across all chains of the episode.
func (e *Episode) Spent() int64 {
	var total int64
	for i, d := range protocol.Denominations {
		total += int64(e.next[i]) * int64(d)
	}
	return total
}

// Remaining reports how many links of d can still be paid.
func (e *Episode) Remaining(d protocol.Denomination) int {
	slot, err := d.Slot()
	if err != nil {
		return 0
	}
	return e.chains[slot].Len() - 1 - int(e.next[slot])
}
