package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/tickwork/internal/core"
)

// namespaceOrder ranks the namespaces that must start early. Storage comes
// first so it is stopped last; the gateway comes after the runtime it serves.
var namespaceOrder = map[string]int{
	"storage": 0,
	"runtime": 1,
	"gateway": 2,
}

func rank(id string) int {
	if r, ok := namespaceOrder[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(namespaceOrder)
}

// Resolve returns the module IDs from the configuration in load order:
// known namespaces by rank, then everything else, ties broken by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), cmp.Compare(a, b))
	})
	return ids
}
