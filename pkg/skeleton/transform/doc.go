// Package transform implements animation-aware edits on a skeleton:
// structural operations (inserting, removing and renaming joints) and
// geometric operations (scaling, rotation-order conversion, offset
// replacement and motion projection between skeletons).
//
// Structural edits rewire the tree and compute compensating rotations per
// frame so that joints outside the edited region keep their world-space
// motion as closely as the algebra allows. Operations validate their inputs
// and precompute all per-frame corrections before mutating, so a returned
// error means the skeleton was left untouched.
package transform
