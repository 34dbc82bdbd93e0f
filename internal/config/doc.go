// Package config loads and validates the sync daemon configuration.
//
// Configuration is YAML with ${VAR} environment expansion. Load reads the
// raw file, LoadWithDefaults fills unset fields, LoadAndValidate adds the
// validation pass used by the daemons.
package config
