// Package conv provides checked integer conversions.
//
// Record lengths, block offsets and positions cross between Go's int and the
// fixed-width fields of the stash record header. Conversions that are provably
// safe by construction use direct casts; everything derived from caller input
// goes through this package.
package conv
