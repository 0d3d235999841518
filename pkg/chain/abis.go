package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const cellABIJSON = `[
	{"type":"function","name":"route","stateMutability":"view","inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"extras","type":"bytes"}
	],"outputs":[
		{"name":"trade","type":"bytes"},
		{"name":"gasEstimate","type":"uint256"}
	]},
	{"type":"function","name":"initiate","stateMutability":"payable","inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"instructions","type":"tuple","components":[
			{"name":"receiver","type":"address"},
			{"name":"payableReceiver","type":"bool"},
			{"name":"rollbackTeleporterFee","type":"uint256"},
			{"name":"rollbackGasLimit","type":"uint256"},
			{"name":"hops","type":"tuple[]","components":[
				{"name":"action","type":"uint8"},
				{"name":"requiredGasLimit","type":"uint256"},
				{"name":"recipientGasLimit","type":"uint256"},
				{"name":"trade","type":"bytes"},
				{"name":"bridgePath","type":"tuple","components":[
					{"name":"bridgeSourceChain","type":"address"},
					{"name":"sourceBridgeIsNative","type":"bool"},
					{"name":"bridgeDestinationChain","type":"address"},
					{"name":"cellDestinationChain","type":"address"},
					{"name":"destinationBlockchainID","type":"bytes32"},
					{"name":"teleporterFee","type":"uint256"},
					{"name":"secondaryTeleporterFee","type":"uint256"}
				]}
			]}
		]}
	],"outputs":[]},
	{"type":"event","name":"Initiated","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Rollback","anonymous":false,"inputs":[
		{"name":"receiver","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"CellReceivedTokens","anonymous":false,"inputs":[
		{"name":"sourceBlockchainID","type":"bytes32","indexed":true},
		{"name":"sourceBridge","type":"address","indexed":true},
		{"name":"originSender","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

const teleporterMessage = `{"name":"message","type":"tuple","components":[
	{"name":"messageNonce","type":"uint256"},
	{"name":"originSenderAddress","type":"address"},
	{"name":"destinationBlockchainID","type":"bytes32"},
	{"name":"destinationAddress","type":"address"},
	{"name":"requiredGasLimit","type":"uint256"},
	{"name":"allowedRelayerAddresses","type":"address[]"},
	{"name":"receipts","type":"tuple[]","components":[
		{"name":"receivedMessageNonce","type":"uint256"},
		{"name":"relayerRewardAddress","type":"address"}
	]},
	{"name":"message","type":"bytes"}
]}`

const messengerABIJSON = `[
	{"type":"event","name":"SendCrossChainMessage","anonymous":false,"inputs":[
		{"name":"messageID","type":"bytes32","indexed":true},
		{"name":"destinationBlockchainID","type":"bytes32","indexed":true},
		` + teleporterMessage + `,
		{"name":"feeInfo","type":"tuple","components":[
			{"name":"feeTokenAddress","type":"address"},
			{"name":"amount","type":"uint256"}
		]}
	]},
	{"type":"event","name":"ReceiveCrossChainMessage","anonymous":false,"inputs":[
		{"name":"messageID","type":"bytes32","indexed":true},
		{"name":"sourceBlockchainID","type":"bytes32","indexed":true},
		{"name":"deliverer","type":"address","indexed":true},
		{"name":"rewardRedeemer","type":"address","indexed":false},
		` + teleporterMessage + `
	]},
	{"type":"event","name":"MessageExecutionFailed","anonymous":false,"inputs":[
		{"name":"messageID","type":"bytes32","indexed":true},
		{"name":"sourceBlockchainID","type":"bytes32","indexed":true},
		` + teleporterMessage + `
	]}
]`

const icttABIJSON = `[
	{"type":"event","name":"TokensSent","anonymous":false,"inputs":[
		{"name":"teleporterMessageID","type":"bytes32","indexed":true},
		{"name":"sender","type":"address","indexed":true},
		{"name":"input","type":"tuple","components":[
			{"name":"destinationBlockchainID","type":"bytes32"},
			{"name":"destinationTokenTransferrerAddress","type":"address"},
			{"name":"recipient","type":"address"},
			{"name":"primaryFeeTokenAddress","type":"address"},
			{"name":"primaryFee","type":"uint256"},
			{"name":"secondaryFee","type":"uint256"},
			{"name":"requiredGasLimit","type":"uint256"},
			{"name":"multiHopFallback","type":"address"}
		]},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"TokensAndCallSent","anonymous":false,"inputs":[
		{"name":"teleporterMessageID","type":"bytes32","indexed":true},
		{"name":"sender","type":"address","indexed":true},
		{"name":"input","type":"tuple","components":[
			{"name":"destinationBlockchainID","type":"bytes32"},
			{"name":"destinationTokenTransferrerAddress","type":"address"},
			{"name":"recipientContract","type":"address"},
			{"name":"recipientPayload","type":"bytes"},
			{"name":"requiredGasLimit","type":"uint256"},
			{"name":"recipientGasLimit","type":"uint256"},
			{"name":"multiHopFallback","type":"address"},
			{"name":"fallbackRecipient","type":"address"},
			{"name":"primaryFeeTokenAddress","type":"address"},
			{"name":"primaryFee","type":"uint256"},
			{"name":"secondaryFee","type":"uint256"}
		]},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"TokensWithdrawn","anonymous":false,"inputs":[
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"CallSucceeded","anonymous":false,"inputs":[
		{"name":"recipientContract","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"CallFailed","anonymous":false,"inputs":[
		{"name":"recipientContract","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"account","type":"address"}
	],"outputs":[
		{"name":"","type":"uint256"}
	]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Deposit","anonymous":false,"inputs":[
		{"name":"dst","type":"address","indexed":true},
		{"name":"wad","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Withdrawal","anonymous":false,"inputs":[
		{"name":"src","type":"address","indexed":true},
		{"name":"wad","type":"uint256","indexed":false}
	]}
]`

const yakAdapterABIJSON = `[
	{"type":"event","name":"YakAdapterSwap","anonymous":false,"inputs":[
		{"name":"_tokenFrom","type":"address","indexed":true},
		{"name":"_tokenTo","type":"address","indexed":true},
		{"name":"_amountIn","type":"uint256","indexed":false},
		{"name":"_amountOut","type":"uint256","indexed":false}
	]}
]`

const uniswapV2ABIJSON = `[
	{"type":"event","name":"Swap","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"amount0In","type":"uint256","indexed":false},
		{"name":"amount1In","type":"uint256","indexed":false},
		{"name":"amount0Out","type":"uint256","indexed":false},
		{"name":"amount1Out","type":"uint256","indexed":false},
		{"name":"to","type":"address","indexed":true}
	]}
]`

const uniswapV3ABIJSON = `[
	{"type":"event","name":"Swap","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount0","type":"int256","indexed":false},
		{"name":"amount1","type":"int256","indexed":false},
		{"name":"sqrtPriceX96","type":"uint160","indexed":false},
		{"name":"liquidity","type":"uint128","indexed":false},
		{"name":"tick","type":"int24","indexed":false}
	]}
]`

// Parsed contract ABIs.
var (
	CellABI      = mustParse(cellABIJSON)
	MessengerABI = mustParse(messengerABIJSON)
	ICTTABI      = mustParse(icttABIJSON)
	ERC20ABI     = mustParse(erc20ABIJSON)
	YakABI       = mustParse(yakAdapterABIJSON)
	UniswapV2ABI = mustParse(uniswapV2ABIJSON)
	UniswapV3ABI = mustParse(uniswapV3ABIJSON)
)

// Event ids (topic 0) the receipt parser dispatches on.
var (
	TopicTransfer           = ERC20ABI.Events["Transfer"].ID
	TopicDeposit            = ERC20ABI.Events["Deposit"].ID
	TopicWithdrawal         = ERC20ABI.Events["Withdrawal"].ID
	TopicInitiated          = CellABI.Events["Initiated"].ID
	TopicRollback           = CellABI.Events["Rollback"].ID
	TopicCellReceivedTokens = CellABI.Events["CellReceivedTokens"].ID
	TopicSendCrossChain     = MessengerABI.Events["SendCrossChainMessage"].ID
	TopicReceiveCrossChain  = MessengerABI.Events["ReceiveCrossChainMessage"].ID
	TopicMessageExecFailed  = MessengerABI.Events["MessageExecutionFailed"].ID
	TopicTokensSent         = ICTTABI.Events["TokensSent"].ID
	TopicTokensAndCallSent  = ICTTABI.Events["TokensAndCallSent"].ID
	TopicTokensWithdrawn    = ICTTABI.Events["TokensWithdrawn"].ID
	TopicCallSucceeded      = ICTTABI.Events["CallSucceeded"].ID
	TopicCallFailed         = ICTTABI.Events["CallFailed"].ID
	TopicYakAdapterSwap     = YakABI.Events["YakAdapterSwap"].ID
	TopicUniswapV2Swap      = UniswapV2ABI.Events["Swap"].ID
	TopicUniswapV3Swap      = UniswapV3ABI.Events["Swap"].ID
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("invalid ABI: " + err.Error())
	}
	return parsed
}
