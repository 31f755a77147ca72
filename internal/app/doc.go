// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle: load a
// graph document, compile it, then evaluate it either by interpretation or
// as a compute kernel, decoupled from any specific entrypoint like a CLI.
package app
