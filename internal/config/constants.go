package config

import "time"

// Application constants
const (
	AppName   = "tabstat"
	EnvPrefix = "TABSTAT"

	// Config file discovery
	DefaultConfigFile = "tabstat.yaml"
	ConfigFileEnv     = "TABSTAT_CONFIG"

	// Engine defaults
	DefaultThreads    = 1
	DefaultMaxThreads = 256
	DefaultDelimiter  = ","

	// Server defaults
	DefaultPort            = 8080
	DefaultRequestTimeout  = 5 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 64 << 20

	// Rate limiting
	DefaultRateLimit = 20
	DefaultBurstSize = 40

	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "console"
	DefaultLogFile   = "logs/tabstat.log"
)

// Delimiters accepted by the table loader
var AllowedDelimiters = []string{",", ";", "|", "\t"}
