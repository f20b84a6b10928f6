package blockchain

import (
	"math/big"

	"github.com/core-coin/go-core/v2/accounts/abi"
	"github.com/core-coin/go-core/v2/core/types"
)

// CollectibleABI is the ABI of the location collectible contract. Each
// verified collection mints one token carrying the location metadata URI.
const CollectibleABI = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"},{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"string","name":"uri","type":"string"}],"name":"mint","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// mintedTokenID extracts the minted token id from a receipt by finding
// the Transfer event emitted by the collectible contract. Returns an
// empty string when the receipt carries no Transfer log.
func mintedTokenID(parsedABI abi.ABI, receipt *types.Receipt) string {
	transferID := parsedABI.Events["Transfer"].ID
	for _, log := range receipt.Logs {
		// Transfer(address indexed, address indexed, uint256 indexed)
		// carries the token id as the third indexed topic.
		if len(log.Topics) == 4 && log.Topics[0] == transferID {
			return new(big.Int).SetBytes(log.Topics[3].Bytes()).String()
		}
	}
	return ""
}
