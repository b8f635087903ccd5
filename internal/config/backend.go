package config

// Backend persists non-secret settings for `folio config set`. Values are
// stored as text; the key table decides how each one is parsed on load.
type Backend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
	Delete(key string) error
}
