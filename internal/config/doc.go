// Package config owns every runtime setting repack reads.
//
// Settings come from a TOML file layered over built-in defaults, with
// environment variables (REPACK_API_ACCOUNT, REPACK_API_PASSWORD) filling in
// credentials the file leaves blank. Paths are tilde-expanded and made
// absolute during load, and validation runs before any caller sees a Config,
// so the rest of the program never re-checks directories, archive formats, or
// credential presence.
package config
