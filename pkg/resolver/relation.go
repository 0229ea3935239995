// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
)

// SetRelation classifies how two version-constraint sets on one package
// relate to each other.  The solver uses it to decide whether a new
// requirement can coexist with the requirements already on a vertex:
// Disjoint means a conflict, the other two mean the candidate space is
// non-empty.
type SetRelation int

const (
	// RelationSubset: every version allowed by the first set is allowed by
	// the second.
	RelationSubset SetRelation = iota
	// RelationDisjoint: no version is allowed by both sets.
	RelationDisjoint
	// RelationOverlapping: the sets share at least one version but neither
	// contains the other.
	RelationOverlapping
	_relationEnd
)

func (r SetRelation) String() string {
	str, ok := map[SetRelation]string{
		RelationSubset:      "subset",
		RelationDisjoint:    "disjoint",
		RelationOverlapping: "overlapping",
	}[r]
	if !ok {
		panic(fmt.Errorf("invalid SetRelation: %d", r))
	}
	return str
}
