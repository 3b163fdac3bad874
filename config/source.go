package config

// ConfigSource is one layer of configuration: a file, the environment or command line flags
type ConfigSource interface {
	// Name identifies the source in logs and errors
	Name() string

	// Priority orders the merge; higher values override lower ones.
	//
	//	config.yaml           10
	//	<env>.yaml            20
	//	prefixed environment  50
	//	bound variables       60
	//	flags                100
	Priority() int

	// Load returns flat keys separated by dots, e.g. "token.secret"
	Load() (map[string]interface{}, error)
}
