package quote

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/chain"
	"cellroute/pkg/types"
)

// InstructionParams are the fixed fee and gas settings applied to every
// route.
type InstructionParams struct {
	RollbackTeleporterFee  *big.Int
	RollbackGasLimit       *big.Int
	RequiredGasBuffer      uint64
	RecipientGasBuffer     uint64
	TeleporterFee          *big.Int
	SecondaryTeleporterFee *big.Int
}

// Instructions is the payload of the source cell's initiate call. Field names
// follow the contract ABI so the struct packs directly.
type Instructions struct {
	Receiver              common.Address `json:"receiver"`
	PayableReceiver       bool           `json:"payable_receiver"`
	RollbackTeleporterFee *big.Int       `json:"rollback_teleporter_fee"`
	RollbackGasLimit      *big.Int       `json:"rollback_gas_limit"`
	Hops                  []Hop          `json:"hops"`
}

type Hop struct {
	Action            uint8      `json:"action"`
	RequiredGasLimit  *big.Int   `json:"required_gas_limit"`
	RecipientGasLimit *big.Int   `json:"recipient_gas_limit"`
	Trade             []byte     `json:"trade"`
	BridgePath        BridgePath `json:"bridge_path"`
}

type BridgePath struct {
	BridgeSourceChain       common.Address `json:"bridge_source_chain"`
	SourceBridgeIsNative    bool           `json:"source_bridge_is_native"`
	BridgeDestinationChain  common.Address `json:"bridge_destination_chain"`
	CellDestinationChain    common.Address `json:"cell_destination_chain"`
	DestinationBlockchainID [32]byte       `json:"destination_blockchain_id"`
	TeleporterFee           *big.Int       `json:"teleporter_fee"`
	SecondaryTeleporterFee  *big.Int       `json:"secondary_teleporter_fee"`
}

// BuildInstructions encodes route into the ordered hop structs the source cell
// executes.
func BuildInstructions(route *types.Route, receiver common.Address, payableReceiver bool, params InstructionParams) (*Instructions, error) {
	if route == nil || len(route.Hops) == 0 {
		return nil, errors.New("route has no hops")
	}
	if receiver == (common.Address{}) {
		return nil, errors.New("receiver address is required")
	}

	ins := &Instructions{
		Receiver:              receiver,
		PayableReceiver:       payableReceiver,
		RollbackTeleporterFee: orZero(params.RollbackTeleporterFee),
		RollbackGasLimit:      orZero(params.RollbackGasLimit),
		Hops:                  make([]Hop, 0, len(route.Hops)),
	}

	for i, hq := range route.Hops {
		gas := new(big.Int).SetUint64(hq.GasEstimate)
		hop := Hop{
			Action:            hq.Action.Code(),
			RequiredGasLimit:  new(big.Int).Add(gas, new(big.Int).SetUint64(params.RequiredGasBuffer)),
			RecipientGasLimit: new(big.Int).Add(gas, new(big.Int).SetUint64(params.RecipientGasBuffer)),
			Trade:             hq.MinTrade,
			BridgePath: BridgePath{
				TeleporterFee:          new(big.Int),
				SecondaryTeleporterFee: new(big.Int),
			},
		}
		if hop.Trade == nil {
			hop.Trade = hq.Trade
		}
		if hop.Trade == nil {
			hop.Trade = []byte{}
		}
		if hq.Action.Swaps() && len(hop.Trade) == 0 {
			return nil, fmt.Errorf("hop %d swaps but has no trade", i)
		}

		if hq.Action.Bridges() {
			if hq.Bridge == nil || hq.DstChain == nil {
				return nil, fmt.Errorf("hop %d bridges but has no bridge data", i)
			}
			hop.BridgePath = BridgePath{
				BridgeSourceChain:       hq.Bridge.SrcBridge,
				SourceBridgeIsNative:    hq.Bridge.SrcBridgeIsNative,
				BridgeDestinationChain:  hq.Bridge.DstBridge,
				CellDestinationChain:    hq.DstCell,
				DestinationBlockchainID: hq.DstChain.BlockchainID,
				TeleporterFee:           orZero(params.TeleporterFee),
				SecondaryTeleporterFee:  orZero(params.SecondaryTeleporterFee),
			}
		}
		ins.Hops = append(ins.Hops, hop)
	}

	return ins, nil
}

// PackInitiate ABI-encodes the initiate(token, amount, instructions) call.
// Native tokens are sent as the zero address.
func PackInitiate(token common.Address, amount *big.Int, ins *Instructions) ([]byte, error) {
	if ins == nil {
		return nil, errors.New("instructions are required")
	}
	data, err := chain.CellABI.Pack("initiate", token, amount, *ins)
	if err != nil {
		return nil, fmt.Errorf("failed to pack initiate call: %w", err)
	}
	return data, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
