package config

// ConfigBackend is the platform-native store for non-secret settings:
// UserDefaults (via the `defaults` CLI) on macOS, a JSON file under
// $XDG_CONFIG_HOME elsewhere. Secrets never pass through it.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
