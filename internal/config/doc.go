// Package config loads the rpgtask configuration.
//
// Configuration is read from a TOML or YAML file chosen by extension, then
// overridden by RPGTASK_* environment variables, then validated. A missing
// file is not an error: the defaults are used instead.
//
// # Live reload
//
// A Watcher observes the configuration file with fsnotify and reloads it
// after a short quiet period. Every successful reload is handed to a
// callback; the application republishes it as a signal.
package config
