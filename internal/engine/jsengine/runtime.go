package jsengine

import "embed"

// runtimeFS holds the runtime and DOM models analysed alongside every program.
//
//go:embed runtime/prologue.js runtime/preamble.js
var runtimeFS embed.FS

// bootstrapFiles are analysed before the entry file, in this order.
var bootstrapFiles = []string{"prologue.js", "preamble.js"}
