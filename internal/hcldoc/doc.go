// Package hcldoc loads documents written in HCL, the authoring format.
//
//	main = "main"
//
//	network "scale" {
//	  input "x" { type = number }
//	  node "twice" {
//	    op   = "math.add"
//	    args = [input.x, input.x]
//	  }
//	  export = [node.twice]
//	}
//
// Inside args and export, `node.<id>` refers to output 0 of a node of the
// same network, `node.<id>[k]` to output k, and `input.<name>` to a declared
// input of the network. Any other expression is evaluated once, at load time,
// into a constant.
package hcldoc
