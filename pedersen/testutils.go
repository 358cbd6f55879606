// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pedersen

import "golang.org/x/crypto/blake2b"

// HashTestMessage produces a deterministic 32-byte message digest for
// signature tests.
func HashTestMessage(s string) [32]byte {
	return blake2b.Sum256([]byte(s))
}
