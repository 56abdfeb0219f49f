package registry

import (
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/vault"
)

// Registry resolves an asset to its approved yield vault, if any. Resolution
// is deterministic; a missing binding is the valid idle-only configuration,
// not an error.
type Registry interface {
	Resolve(asset types.AssetID) (vault.Vault, bool)
}

// Static is an immutable registry built at startup from approved bindings.
type Static struct {
	bindings map[types.AssetID]vault.Vault
}

// NewStatic creates a registry over the given bindings. The map is copied so
// later mutation by the caller cannot change resolution results.
func NewStatic(bindings map[types.AssetID]vault.Vault) *Static {
	copied := make(map[types.AssetID]vault.Vault, len(bindings))
	for asset, v := range bindings {
		if v != nil {
			copied[asset] = v
		}
	}
	return &Static{bindings: copied}
}

func (r *Static) Resolve(asset types.AssetID) (vault.Vault, bool) {
	v, ok := r.bindings[asset]
	return v, ok
}
