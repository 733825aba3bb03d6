// Package memory is the long-term fact memory behind the remember_fact and
// recall_memories tools. Store is the contract; InMemoryStore is a
// process-local implementation ranking facts by term overlap. Facts pass the
// guard's memory policy before they are stored, and recall refuses queries
// that fish for secrets.
package memory
