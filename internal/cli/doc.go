// Package cli is responsible for parsing command-line arguments, validating
// user input, and reporting errors with process exit codes. It translates
// flags into the configuration of the graph runner and the compilation
// server.
package cli
