// Package docjson reads and writes documents in the versioned JSON format.
//
// Constants are stored with their cty type next to their value so that a
// loaded document is identical to the saved one. Nodes whose identifier is
// not known to the registry do not abort loading: they are replaced by a
// stub and reported as a LoadIssue, and the original identifier is written
// back on save.
package docjson
