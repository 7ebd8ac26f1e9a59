// Package compress provides pluggable stream compression for input files.
//
// A Registry is built once, typically with NewRegistry, and passed to the
// code that opens inputs. It maps a Kind to a Backend and file extensions to
// kinds:
//
//	reg := compress.NewRegistry()
//	kind := reg.DetectFromPath("planet.ndjson.zst") // compress.Zstd
//	rc, err := reg.NewReader(kind, f)
//
// Additional backends are added with Register. There is no package-level
// registry.
package compress
