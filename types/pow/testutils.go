// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

// This file holds a deliberately naive Cuckoo Cycle solver.  Mining is
// out of scope for the node core;  the solver exists so tests can
// manufacture genuine solutions for small graphs instead of stubbing
// out verification.

const maxPathLen = 8192

// solverCtx unions edges into trees, detecting the cycle an edge would
// close and recovering its nonces when the length matches.
type solverCtx struct {
	key       SiphashKey
	variant   GraphVariant
	edgeBits  uint8
	proofSize int

	// links maps a node to its parent toward the tree root;  zero is
	// reserved as nil, so node ids are offset by one.
	links map[uint64]uint64
}

// FindCycle scans every edge of the graph keyed by seed once and
// returns the nonces of the first cycle of exactly proofSize edges, or
// false when the graph holds none.  Only suitable for small edgeBits.
func FindCycle(seed [32]byte, variant GraphVariant, edgeBits uint8, proofSize int) ([]uint64, bool) {
	ctx := &solverCtx{
		key:       NewSiphashKey(seed),
		variant:   variant,
		edgeBits:  edgeBits,
		proofSize: proofSize,
		links:     make(map[uint64]uint64),
	}

	numEdges := uint64(1) << edgeBits
	numNodes := numEdges

	us := make([]uint64, maxPathLen)
	vs := make([]uint64, maxPathLen)

	for nonce := uint64(0); nonce < numEdges; nonce++ {
		u0, v0 := edgeEndpoints(&ctx.key, variant, edgeBits, nonce)
		uID := u0 + 1
		vID := v0 + 1 + numNodes

		nu, okU := ctx.walk(uID, us)
		nv, okV := ctx.walk(vID, vs)
		if !okU || !okV {
			continue
		}

		if us[nu] == vs[nv] {
			// Both endpoints already share a tree:  this edge closes
			// a cycle.  Strip the common tail to find the length.
			for nu > 0 && nv > 0 && us[nu-1] == vs[nv-1] {
				nu--
				nv--
			}
			if nu+nv+1 == ctx.proofSize {
				if nonces, ok := ctx.recover(seed, us[:nu+1], vs[:nv+1]); ok {
					return nonces, true
				}
			}
			continue
		}

		// Union:  re-root the shorter path at its endpoint and hang
		// it off the other tree.
		if nu < nv {
			for i := nu; i > 0; i-- {
				ctx.links[us[i]] = us[i-1]
			}
			ctx.links[uID] = vID
		} else {
			for i := nv; i > 0; i-- {
				ctx.links[vs[i]] = vs[i-1]
			}
			ctx.links[vID] = uID
		}
	}
	return nil, false
}

// walk fills path with the chain from start to its tree root and
// returns the root index.
func (ctx *solverCtx) walk(start uint64, path []uint64) (int, bool) {
	n := 0
	u := start
	for u != 0 {
		if n >= maxPathLen {
			return 0, false
		}
		path[n] = u
		u = ctx.links[u]
		n++
	}
	return n - 1, true
}

// recover rescans all edges, picking the nonces whose endpoints lie on
// the discovered cycle.
func (ctx *solverCtx) recover(seed [32]byte, us, vs []uint64) ([]uint64, bool) {
	type edge struct{ u, v uint64 }
	cycle := make(map[edge]bool, ctx.proofSize)

	// The closing edge plus the tree edges along both paths.  Paths
	// alternate partition sides, so each consecutive pair is one
	// graph edge;  normalize to (u-side, v-side) order.
	addEdge := func(a, b uint64) {
		if a > b {
			a, b = b, a
		}
		cycle[edge{a, b}] = true
	}
	addEdge(us[0], vs[0])
	for i := 0; i+1 < len(us); i++ {
		addEdge(us[i], us[i+1])
	}
	for i := 0; i+1 < len(vs); i++ {
		addEdge(vs[i], vs[i+1])
	}

	numEdges := uint64(1) << ctx.edgeBits
	numNodes := numEdges
	var nonces []uint64
	for nonce := uint64(0); nonce < numEdges; nonce++ {
		u0, v0 := edgeEndpoints(&ctx.key, ctx.variant, ctx.edgeBits, nonce)
		a, b := u0+1, v0+1+numNodes
		if a > b {
			a, b = b, a
		}
		if cycle[edge{a, b}] {
			nonces = append(nonces, nonce)
		}
	}
	// Duplicate edges in the graph can over-collect;  such solutions
	// are discarded and the search continues elsewhere.
	if len(nonces) != ctx.proofSize {
		return nil, false
	}
	return nonces, true
}
