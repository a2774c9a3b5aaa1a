// Package config loads the vnflcm workspace configuration.
//
// The workspace file, vnflcm.yaml by default, holds the data directory, the
// database location, telemetry settings, policy sources and the actuator
// used to execute plans:
//
//	data_dir: ./data
//	context: lab
//	database:
//	  path: ./data/vnflcm.db
//	policy:
//	  mode: enforcing
//	  paths: [./policies]
//	actuator:
//	  kind: hook
//	  command: ./bin/actuate
//	  max_parallel: 8
//
// Keys missing from the file keep their defaults. VNFLCM_DB and LOG_LEVEL
// override the database path and the log level after the file is read.
package config
