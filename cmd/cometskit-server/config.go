package main

import (
	"flag"
	"os"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr       string
	WorkDir    string
	JavaBin    string
	CometsHome string
	StoreDSN   string
	LogLevel   string
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

// loadServerConfig loads server configuration from CLI flags and environment variables.
// Uses a resolver pattern to make it easy to add new configuration options.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	// Define all configuration resolvers
	// To add a new option, just add a new resolver here
	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "COMETSKIT_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "workdir",
			envVarName:  "COMETSKIT_WORKDIR",
			defaultVal:  "./runs",
			description: "directory where run staging directories are created",
			setter:      func(c *ServerConfig, v string) { c.WorkDir = v },
		},
		{
			flagName:    "java-bin",
			envVarName:  "COMETSKIT_JAVA_BIN",
			defaultVal:  "",
			description: "java binary used to start the engine (default: java on PATH)",
			setter:      func(c *ServerConfig, v string) { c.JavaBin = v },
		},
		{
			flagName:    "comets-home",
			envVarName:  "COMETS_HOME",
			defaultVal:  "",
			description: "engine installation directory holding the bin/ and lib/ jars",
			setter:      func(c *ServerConfig, v string) { c.CometsHome = v },
		},
		{
			flagName:    "store-dsn",
			envVarName:  "COMETSKIT_STORE_DSN",
			defaultVal:  "",
			description: "postgres DSN for the run registry; empty keeps runs in memory",
			setter:      func(c *ServerConfig, v string) { c.StoreDSN = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "COMETSKIT_LOG_LEVEL",
			defaultVal:  "info",
			description: "Log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
	}

	// Register string flags first
	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	// Parse flags once
	flag.Parse()

	// Resolve values for each resolver
	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}
