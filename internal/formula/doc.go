// Package formula implements the quantifier-free formulas used by the
// verifier for state formulas, path formulas and interpolants.
//
// Formulas range over two sorts: booleans and bounded machine integers.
// Integer semantics (width, wraparound) are fixed by the prover that decides
// them, not by this package.
//
// Variables carry an optional SSA index. A variable with index NoIndex is a
// plain program variable (as found in state formulas and interpolants after
// uninstantiation); an indexed variable x@k denotes the k-th version of x
// along a path.
//
// Construct formulas with the helper constructors (And, Or, Not, Lt, ...)
// rather than the struct literals: the constructors keep formulas in a small
// normal form (flattened, constant-folded, deduplicated), which keeps prover
// queries and printed invariants readable.
package formula
