// Package config loads tabstat configuration.
//
// Values come from three sources, highest precedence first:
//
//  1. Environment variables prefixed TABSTAT_ (TABSTAT_ENGINE_DEFAULT_THREADS=8)
//  2. A YAML file: the path given to Load, else $TABSTAT_CONFIG, else
//     tabstat.yaml or configs/tabstat.yaml in the working directory
//  3. The defaults returned by Default
//
// An environment variable only overrides the file when it is set to something
// other than the built-in default.
package config
