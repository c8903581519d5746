// Package file holds the on-disk configuration of synchronoux.
//
// Config is the typed view of config.toml used to assemble a sync run.
// ConfigStore is the flat key/value view used by `synchronoux config get|set`;
// dotted keys such as "sync.priority" are written as nested TOML tables so
// both views read the same file.
package file
