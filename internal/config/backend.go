package config

// ConfigBackend abstracts persistent config storage. Keys are dotted paths
// ("server.port") that map onto nested tables.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
