package config

// Loader loads configuration into a target struct
type Loader interface {
	// Load reads the configuration into target
	Load(target any) error

	// Watch invokes callback whenever the underlying source changes
	Watch(callback func()) error
}
