// Command ufpmap renders ultrafine-particle sensor readings into an animated
// map video and offers helpers for exploring the input data.
//
// Typical use:
//
//	ufpmap dates --data readings.csv
//	ufpmap render --date 2025-08-01 --data readings.csv
//	ufpmap runs
//
// Configuration is read from ~/.config/ufpmap/config.toml or ./ufpmap.toml;
// run `ufpmap config init` to create a commented sample.
package main
