package config

// Reloadable is implemented by components that can take a new configuration
// without a restart. OnConfigChange receives the decoded target of a
// ReloadableSubscriber and must either apply it fully or return an error.
type Reloadable interface {
	OnConfigChange(newConfig any) error
}
