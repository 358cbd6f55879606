// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package pedersen implements the homomorphic commitment arithmetic the
Mimblewimble balance equation is built on.

A commitment C = r*G + v*H hides an amount v behind a blinding factor r,
where G is the secp256k1 base point and H is a second generator with no
known discrete log relative to G.  Commitments to amounts sum like the
amounts themselves, which is what lets a validator check that a
transaction creates no money without ever seeing a value:

	sum(outputs) - sum(inputs) - sum(kernel excesses) - offset*G == identity

The package exposes the point operations needed for that check
(addition, negation, linear combination, identity test) plus the Schnorr
signature wrappers used to verify kernel excess signatures.
*/
package pedersen
