package domain

// TxType names a mutating operation the UI can submit. The refresh
// policy maps each to the cache partitions it invalidates.
type TxType string

const (
	TxPurchase        TxType = "purchase"
	TxStake           TxType = "stake"
	TxRedeem          TxType = "redeem"
	TxSwap            TxType = "swap"
	TxAddLiquidity    TxType = "add_liquidity"
	TxRemoveLiquidity TxType = "remove_liquidity"
	TxClaimRewards    TxType = "claim_rewards"
)

// Partition identifies an independently refreshable slice of derived state.
type Partition string

const (
	PartitionBalances Partition = "balances"
	PartitionPrice    Partition = "price"
	PartitionHistory  Partition = "history"
)

// AllPartitions lists every partition, for the refresh-everything fallback.
var AllPartitions = []Partition{PartitionBalances, PartitionPrice, PartitionHistory}

// Topic is a broadcast bus channel name.
type Topic string

const (
	TopicBalancesUpdated      Topic = "balancesUpdated"
	TopicPriceUpdated         Topic = "priceUpdated"
	TopicTicketStatusChanged  Topic = "ticketStatusChanged"
	TopicStakingStatusChanged Topic = "stakingStatusChanged"
	TopicRewardsChanged       Topic = "rewardsChanged"
	TopicPoolDataChanged      Topic = "poolDataChanged"
)
