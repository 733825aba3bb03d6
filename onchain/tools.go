package onchain

import (
	"fmt"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

type balanceArgs struct {
	Address string `json:"address,omitempty" description:"The 0x address to query."`
}

type transferArgs struct {
	To     string `json:"to" description:"Destination 0x address."`
	Amount string `json:"amount" description:"Amount in ether, e.g. 0.05"`
}

// NewBalanceTool returns the get_balance tool.
func NewBalanceTool(t *Treasury) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapGetBalance),
		"Get the native token balance of an address on the configured chain. Omit the address to read the treasury balance.",
		func(toolCtx *core.ToolContext, args balanceArgs) (any, error) {
			addr := args.Address
			if addr == "" {
				addr = t.Address().Hex()
			}
			bal, err := t.Balance(toolCtx.Context(), addr)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Balance of %s: %s ETH", addr, FormatEther(bal)), nil
		},
	)
}

// NewTransferTool returns the transfer_funds tool. Bind it to the allowlist
// policy; the tool itself does not check destinations.
func NewTransferTool(t *Treasury) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapTransferFunds),
		"Transfer native tokens from the treasury to an address. Only whitelisted destinations are allowed.",
		func(toolCtx *core.ToolContext, args transferArgs) (any, error) {
			to := args.To
			wei, err := ParseEther(args.Amount)
			if err != nil {
				return nil, tool.NewToolError(string(tool.CapTransferFunds), err.Error(), tool.CodeValidation)
			}
			tx, err := t.Transfer(toolCtx.Context(), to, wei)
			if err != nil {
				return nil, err
			}
			toolCtx.LogInfo("onchain.transfer.sent", "to", to, "wei", wei.String(), "tx", tx.Hash().Hex())
			return fmt.Sprintf("Transfer submitted: %s ETH to %s. Transaction hash: %s", FormatEther(wei), to, tx.Hash().Hex()), nil
		},
	)
}
