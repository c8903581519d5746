package driven

// ConfigStore is the dotted-key view of config.toml behind `config get` and
// `config set`. A key such as "sync.priority" or "middle_store.bucket"
// addresses a nested table; the typed configuration the services run with
// is loaded from the same file.
type ConfigStore interface {
	// Get reports whether the file sets key.
	Get(key string) (any, bool)

	// Set writes value at key and rewrites the file with every other key kept.
	Set(key string, value any) error

	// Path is the backing file, reread to validate the typed view after Set.
	Path() string
}
