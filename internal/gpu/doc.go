// Package gpu runs compiled proto networks as compute kernels.
//
// A Pipeline lowers a network to WGSL with shadergen, hands the source to a
// Compiler (the in-process compile service or a remote one) and tracks the
// asynchronous compilation as a Job. The resulting Kernel is loaded on a
// Device and dispatched over lanes: every network input becomes a buffer
// holding one element per lane, and every output a buffer the device fills.
//
// Device follows the shape of a GPU HAL adapter: modules and buffers are
// created explicitly, a dispatch returns a Fence that is signalled when the
// work completes. SoftwareDevice is the reference device; it evaluates the
// network's interpreted implementations once per lane.
package gpu
