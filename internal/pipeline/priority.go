package pipeline

// chainPriorities ranks chains for scheduling. Higher values dequeue first;
// production mainnets outrank testnets.
var chainPriorities = map[string]int{
	"1":        10, // Ethereum mainnet
	"8453":     9,  // Base
	"42161":    9,  // Arbitrum One
	"10":       8,  // OP Mainnet
	"137":      8,  // Polygon
	"56":       7,  // BNB Chain
	"43114":    6,  // Avalanche C-Chain
	"11155111": 3,  // Sepolia
	"17000":    2,  // Holesky
	"84532":    2,  // Base Sepolia
	"421614":   2,  // Arbitrum Sepolia
}

const defaultChainPriority = 1

// ChainPriority maps a blockchain chain ID to its scheduling priority.
// Unknown chains get the default low priority.
func ChainPriority(networkID string) int {
	if p, ok := chainPriorities[networkID]; ok {
		return p
	}
	return defaultChainPriority
}
