package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const marketItemComponents = `[
	{"name":"itemId","type":"uint256"},
	{"name":"nftContract","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"owner","type":"address"},
	{"name":"price","type":"uint256"}
]`

const offerComponents = `[
	{"name":"itemId","type":"uint256"},
	{"name":"nftContract","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"offerer","type":"address"},
	{"name":"seller","type":"address"},
	{"name":"price","type":"uint256"},
	{"name":"isAccepted","type":"bool"}
]`

// MarketplaceABI is the subset of the marketplace contract the CLI calls.
const MarketplaceABI = `[
	{"type":"function","name":"fetchMarketItems","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":` + marketItemComponents + `}]},
	{"type":"function","name":"getItem","stateMutability":"view","inputs":[{"name":"itemId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":` + marketItemComponents + `}]},
	{"type":"function","name":"getOffers","stateMutability":"view","inputs":[{"name":"itemId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":` + offerComponents + `}]},
	{"type":"function","name":"getAccountsOffers","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"tuple[]","components":` + offerComponents + `}]},
	{"type":"function","name":"getCollections","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"buyItem","stateMutability":"payable","inputs":[{"name":"itemId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"placeOffer","stateMutability":"payable","inputs":[{"name":"itemId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"acceptOffer","stateMutability":"nonpayable","inputs":[{"name":"itemId","type":"uint256"},{"name":"offerer","type":"address"}],"outputs":[]},
	{"type":"function","name":"claimItem","stateMutability":"payable","inputs":[{"name":"itemId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"listItemForSale","stateMutability":"nonpayable","inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"addItemToMarketplace","stateMutability":"nonpayable","inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"createCollection","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"withdrawMoney","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"event","name":"CollectionCreated","anonymous":false,"inputs":[
		{"name":"collection","type":"address","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"name","type":"string","indexed":false},
		{"name":"symbol","type":"string","indexed":false}
	]}
]`

// CollectionABI is the subset of the ERC-721 collection contract the CLI calls.
const CollectionABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"tokenURI","type":"string"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	marketABI     = mustABI(MarketplaceABI)
	collectionABI = mustABI(CollectionABI)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Field names follow abi.ToCamelCase of the component names so ConvertType and
// Pack can map them.
type marketItemTuple struct {
	ItemId      *big.Int
	NftContract common.Address
	TokenId     *big.Int
	Owner       common.Address
	Price       *big.Int
}

type offerTuple struct {
	ItemId      *big.Int
	NftContract common.Address
	TokenId     *big.Int
	Offerer     common.Address
	Seller      common.Address
	Price       *big.Int
	IsAccepted  bool
}
