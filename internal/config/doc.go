// Package config handles configuration loading and merging for verifyapi.
//
// # Configuration Precedence
//
// Values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--provider, --kind, --format, --theme, --timeout, ...)
//  2. Environment variables (VERIFYAPI_*, ANTHROPIC_API_KEY, OPENAI_API_KEY,
//     GEMINI_API_KEY, NO_COLOR, CI)
//  3. YAML config file (.verifyapi.yaml in the working directory, or
//     <user config dir>/verifyapi/.verifyapi.yaml)
//  4. Defaults declared in the Config struct tags
//
// Levels 2 to 4 are handled by cleanenv; flags are applied by ApplyFlags.
//
// # Output Resolution
//
// Format "auto" becomes "terminal" on a TTY and "plain" otherwise. CI=true
// forces plain output and NO_COLOR forces the mono theme unless the theme
// was given as a flag.
package config
