package refresh

import "github.com/vietddude/ticketdash/internal/core/domain"

// PolicyEntry names what a successful mutation invalidates: the cache
// partitions to refetch and the bus topics to announce.
type PolicyEntry struct {
	Partitions []domain.Partition
	Topics     []domain.Topic
}

// Policy maps every mutating operation the UI supports to exactly one
// entry. Lookup of an unmapped type falls back to refresh-everything.
type Policy map[domain.TxType]PolicyEntry

// DefaultPolicy is the static transaction -> invalidation mapping.
func DefaultPolicy() Policy {
	return Policy{
		domain.TxPurchase: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionHistory},
			Topics:     []domain.Topic{domain.TopicBalancesUpdated, domain.TopicTicketStatusChanged},
		},
		domain.TxStake: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionHistory},
			Topics: []domain.Topic{
				domain.TopicBalancesUpdated,
				domain.TopicTicketStatusChanged,
				domain.TopicStakingStatusChanged,
			},
		},
		domain.TxRedeem: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionHistory},
			Topics: []domain.Topic{
				domain.TopicBalancesUpdated,
				domain.TopicTicketStatusChanged,
				domain.TopicRewardsChanged,
			},
		},
		domain.TxSwap: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionPrice},
			Topics: []domain.Topic{
				domain.TopicBalancesUpdated,
				domain.TopicPriceUpdated,
				domain.TopicPoolDataChanged,
			},
		},
		domain.TxAddLiquidity: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionPrice},
			Topics:     []domain.Topic{domain.TopicBalancesUpdated, domain.TopicPoolDataChanged},
		},
		domain.TxRemoveLiquidity: {
			Partitions: []domain.Partition{domain.PartitionBalances, domain.PartitionPrice},
			Topics:     []domain.Topic{domain.TopicBalancesUpdated, domain.TopicPoolDataChanged},
		},
		domain.TxClaimRewards: {
			Partitions: []domain.Partition{domain.PartitionBalances},
			Topics:     []domain.Topic{domain.TopicBalancesUpdated, domain.TopicRewardsChanged},
		},
	}
}

// allTopics is the refresh-everything announcement set.
var allTopics = []domain.Topic{
	domain.TopicBalancesUpdated,
	domain.TopicPriceUpdated,
	domain.TopicTicketStatusChanged,
	domain.TopicStakingStatusChanged,
	domain.TopicRewardsChanged,
	domain.TopicPoolDataChanged,
}

// Lookup returns the entry for txType, or the refresh-everything
// fallback when the type is unmapped.
func (p Policy) Lookup(txType domain.TxType) PolicyEntry {
	if entry, ok := p[txType]; ok {
		return entry
	}
	return PolicyEntry{Partitions: domain.AllPartitions, Topics: allTopics}
}
