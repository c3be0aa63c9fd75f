// Package classification decides where each Tool Shed repository lands in the consolidated repository.
//
// A Policy is built once from a PolicyDefinition (collections, exclusions and legacy suite names) and is
// immutable afterwards. The default definition ships embedded in the binary; operators may replace it with
// a YAML file of the same shape.
package classification
