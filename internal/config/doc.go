// Package config loads, normalizes, and validates reelcap's TOML
// configuration. The Default values work without any config file present;
// Load layers a user file over them when one exists.
package config
