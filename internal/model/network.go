package model

// Network describes one supported chain deployment. Immutable after
// process start; a chain absent from the registry is not yet deployed.
type Network struct {
	ChainID      uint64 `json:"chain_id"`
	Name         string `json:"name"`
	VaultAddress string `json:"vault_address"`
	AssetAddress string `json:"asset_address"`
	RPCURL       string `json:"rpc_url"`
}
