// Package transform provides the built-in transforms an element can be configured
// with by name, and the registry that resolves those names.
//
// Built-ins:
//
//	mean      every output is the element-wise mean of all inputs, truncated
//	copy      every output is a copy of the first input
//	fill      first input copied to every output with the top-left quadrant set to a value
//	crop      every output is the top-left corner of the first input, sized by the output port
//	trace     inputs are passed through unchanged and their dimensions and ranges logged
//
// Params are JSON objects, for example {"value": 200} for fill.
package transform
