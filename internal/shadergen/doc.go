// Package shadergen lowers a proto network into a WGSL compute shader.
//
// Every node implementation used by the network must carry a GPU template:
// an HCL template string that renders to a WGSL expression. Templates see
// their arguments positionally as ${a}, ${b}, ${c} and so on, the WGSL type
// of the node output as ${T} and the WGSL types of the inputs as ${in0},
// ${in1} and so on. One invocation of the generated entry point evaluates
// the whole network for one lane of the input buffers.
package shadergen
