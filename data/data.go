// Package data holds the files embedded in the binary.
package data

import "embed"

//go:embed templates
var FS embed.FS
