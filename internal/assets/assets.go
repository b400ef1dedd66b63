// Package assets embeds the built-in pandoc Lua filter.
package assets

import _ "embed"

// DefaultFilter is the built-in post-processing filter applied to every
// conversion unless a custom filter overrides it.
//
//go:embed linebreaks.lua
var DefaultFilter string
