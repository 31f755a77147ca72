// Package compilesrv is the shader compilation service: it compiles WGSL
// with a profile's toolchain inside an isolated work directory, bounded by a
// timeout and a concurrency limit, and caches the artifacts by content. The
// service is usable in process or over HTTP through NewHandler.
package compilesrv
