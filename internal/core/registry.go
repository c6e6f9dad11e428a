package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// registry holds every module registered from an init function.
var registry = struct {
	sync.RWMutex
	infos map[ModuleID]ModuleInfo
}{infos: make(map[ModuleID]ModuleInfo)}

// RegisterModule records instance's ModuleInfo. It panics on an empty ID,
// a nil constructor or a duplicate ID, so a broken build fails at startup.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.infos[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.infos[info.ID] = info
}

// GetModule looks up a registered module.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.infos[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace sorted by ID:
// "storage" yields "storage.file" and "storage.sqlite". IDs without a dot
// belong to no namespace.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool {
		return info.ID.Namespace() == namespace && info.ID.Name() != string(info.ID)
	})
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var out []ModuleInfo
	for info := range maps.Values(registry.infos) {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry empties the registry between tests.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	clear(registry.infos)
}
