package config

// ConfigBackend abstracts persistent config storage. Keys are the dotted names
// from the key table, e.g. "engine.due_fraction". Get returns the stored value
// as text; parsing into the key's type happens in applyBackend.
type ConfigBackend interface {
	Get(key string) (raw string, ok bool, err error)
	Set(key string, val any) error
	Delete(key string) error
}
