package common

const (
	ComponentIndex       = "index"
	ComponentRegistry    = "registry"
	ComponentChainState  = "chainstate"
	ComponentFollower    = "follower"
	ComponentPruner      = "pruner"
	ComponentKVDB        = "kvdb"
	ComponentMaintenance = "maintenance"
	ComponentRPC         = "rpc"
	ComponentAPI         = "api"
)

var AllComponents = map[string]struct{}{
	ComponentIndex:       {},
	ComponentRegistry:    {},
	ComponentChainState:  {},
	ComponentFollower:    {},
	ComponentPruner:      {},
	ComponentKVDB:        {},
	ComponentMaintenance: {},
	ComponentRPC:         {},
	ComponentAPI:         {},
}
