package cmd

import (
	"github.com/spf13/cobra"

	"mes.GO/core/registry"
)

func registered() []*cobra.Command {
	if v, ok := registry.GlobalRegistry.GetGlobal(registry.KeyRegistryCmd); ok && v != nil {
		return v.([]*cobra.Command)
	}
	return nil
}

// Register queues an extension command for Apply. Call from init().
// Panics when the registry is locked or the name is already taken,
// including by a built-in command such as sync-reports or allocate.
func Register(c *cobra.Command) {
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryCmd) {
		panic("cmd/registry: register " + c.Name() + " after Apply")
	}
	for _, existing := range append(rootCmd.Commands(), registered()...) {
		if existing.Name() == c.Name() {
			panic("cmd/registry: duplicate command " + c.Name())
		}
	}
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryCmd, append(registered(), c))
}

// Apply attaches queued commands to the root once and locks the registry.
func Apply() {
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryCmd) {
		return
	}
	rootCmd.AddCommand(registered()...)
	registry.GlobalRegistry.Lock(registry.KeyRegistryCmd)
}
