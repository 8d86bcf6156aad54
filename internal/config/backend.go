package config

// ConfigBackend abstracts where non-secret config values live.
// macOS stores them in UserDefaults (via the `defaults` CLI); other
// platforms use a JSON file under $XDG_CONFIG_HOME/aicmo.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
