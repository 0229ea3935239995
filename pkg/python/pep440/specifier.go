// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep440

import (
	"fmt"
	"strings"
)

// A Specifier is a comma-separated series of version clauses; a candidate
// version must match every clause (the comma is a logical and).  An empty
// Specifier matches everything.
type Specifier []SpecifierClause

func ParseSpecifier(str string) (Specifier, error) {
	clauseStrs := strings.Split(str, ",")
	ret := make(Specifier, 0, len(clauseStrs))
	for _, clauseStr := range clauseStrs {
		clauseStr = strings.TrimSpace(clauseStr)
		if clauseStr == "" {
			continue
		}
		clause, err := parseSpecifierClause(clauseStr)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseSpecifier: %w", err)
		}
		ret = append(ret, clause)
	}
	return ret, nil
}

func (spec Specifier) String() string {
	clauses := make([]string, 0, len(spec))
	for _, clause := range spec {
		clauses = append(clauses, clause.String())
	}
	return strings.Join(clauses, ",")
}

func (spec Specifier) Match(ver Version) bool {
	for _, clause := range spec {
		if !clause.Match(ver) {
			return false
		}
	}
	return true
}

type CmpOp int

const (
	CmpOpCompatible CmpOp = iota // ~=
	CmpOpStrictMatch
	CmpOpPrefixMatch
	CmpOpStrictExclude
	CmpOpPrefixExclude
	CmpOpLE
	CmpOpGE
	CmpOpLT
	CmpOpGT
	_CmpOpEnd
)

func (op CmpOp) String() string {
	str, ok := map[CmpOp]string{
		CmpOpCompatible:    "~=",
		CmpOpStrictMatch:   "==",
		CmpOpPrefixMatch:   "==",
		CmpOpStrictExclude: "!=",
		CmpOpPrefixExclude: "!=",
		CmpOpLE:            "<=",
		CmpOpGE:            ">=",
		CmpOpLT:            "<",
		CmpOpGT:            ">",
	}[op]
	if !ok {
		panic(fmt.Errorf("invalid CmpOp: %d", op))
	}
	return str
}

type SpecifierClause struct {
	CmpOp   CmpOp
	Version Version
}

func parseSpecifierClause(str string) (SpecifierClause, error) {
	var ret SpecifierClause
	str = strings.TrimSpace(str)
	minSegments := 1
	prefixOK := false
	switch {
	case strings.HasPrefix(str, "~="):
		ret.CmpOp = CmpOpCompatible
		str = str[2:]
		minSegments = 2
	case strings.HasPrefix(str, "==="):
		return ret, fmt.Errorf("arbitrary equality (===) is not supported; versions must be PEP 440 compliant")
	case strings.HasPrefix(str, "=="):
		ret.CmpOp = CmpOpStrictMatch
		str = str[2:]
		prefixOK = true
	case strings.HasPrefix(str, "!="):
		ret.CmpOp = CmpOpStrictExclude
		str = str[2:]
		prefixOK = true
	case strings.HasPrefix(str, "<="):
		ret.CmpOp = CmpOpLE
		str = str[2:]
	case strings.HasPrefix(str, ">="):
		ret.CmpOp = CmpOpGE
		str = str[2:]
	case strings.HasPrefix(str, "<"):
		ret.CmpOp = CmpOpLT
		str = str[1:]
	case strings.HasPrefix(str, ">"):
		ret.CmpOp = CmpOpGT
		str = str[1:]
	default:
		return ret, fmt.Errorf("invalid comparison operator: %q", str)
	}
	if strings.HasSuffix(strings.TrimSpace(str), ".*") {
		if !prefixOK {
			return ret, fmt.Errorf("prefix matching (.*) not permitted in %s specifier clauses", ret.CmpOp)
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), ".*")
		if ret.CmpOp == CmpOpStrictMatch {
			ret.CmpOp = CmpOpPrefixMatch
		} else {
			ret.CmpOp = CmpOpPrefixExclude
		}
	}
	ver, err := ParseVersion(str)
	if err != nil {
		return ret, err
	}
	if len(ver.Release) < minSegments {
		return ret, fmt.Errorf("at least %d release segments required in %s specifier clauses",
			minSegments, ret.CmpOp)
	}
	switch ret.CmpOp {
	case CmpOpPrefixMatch, CmpOpPrefixExclude:
		if ver.Pre != nil || ver.Post != nil || ver.Dev != nil || len(ver.Local) > 0 {
			return ret, fmt.Errorf("prefix matching is only supported on release segments")
		}
	case CmpOpStrictMatch, CmpOpStrictExclude:
		// local-parts are permitted
	default:
		if len(ver.Local) > 0 {
			return ret, fmt.Errorf("local-part not permitted in %s specifier clauses", ret.CmpOp)
		}
	}
	ret.Version = *ver
	return ret, nil
}

func (spec SpecifierClause) String() string {
	suffix := ""
	switch spec.CmpOp {
	case CmpOpPrefixMatch, CmpOpPrefixExclude:
		suffix = ".*"
	}
	return spec.CmpOp.String() + spec.Version.String() + suffix
}

func (spec SpecifierClause) Match(ver Version) bool {
	switch spec.CmpOp {
	case CmpOpCompatible:
		prefix := spec.Version
		prefix.Release = prefix.Release[:len(prefix.Release)-1]
		prefix.Pre = nil
		prefix.Post = nil
		prefix.Dev = nil
		return spec.Version.PublicCmp(ver) <= 0 && matchPrefix(prefix, ver)
	case CmpOpStrictMatch:
		if len(spec.Version.Local) > 0 {
			return spec.Version.Cmp(ver) == 0
		}
		return spec.Version.PublicCmp(ver) == 0
	case CmpOpPrefixMatch:
		return matchPrefix(spec.Version, ver)
	case CmpOpStrictExclude:
		if len(spec.Version.Local) > 0 {
			return spec.Version.Cmp(ver) != 0
		}
		return spec.Version.PublicCmp(ver) != 0
	case CmpOpPrefixExclude:
		return !matchPrefix(spec.Version, ver)
	case CmpOpLE:
		return spec.Version.PublicCmp(ver) >= 0
	case CmpOpGE:
		return spec.Version.PublicCmp(ver) <= 0
	case CmpOpLT:
		return spec.Version.PublicCmp(ver) > 0
	case CmpOpGT:
		return spec.Version.PublicCmp(ver) < 0
	default:
		panic(fmt.Errorf("invalid CmpOp: %d", spec.CmpOp))
	}
}

// matchPrefix compares the epoch and the release segments up to the length
// of spec's release, with the usual zero padding of the candidate.
func matchPrefix(spec, ver Version) bool {
	if spec.Epoch != ver.Epoch {
		return false
	}
	release := ver.Release
	if len(release) > len(spec.Release) {
		release = release[:len(spec.Release)]
	}
	return cmpRelease(spec.Release, release) == 0
}

// Select returns the most-preferred matching version out of choices, or nil
// if none match.  Pre-releases are implicitly excluded unless a pre-release
// is the only way to satisfy the specifier.
func (spec Specifier) Select(choices []Version) *Version {
	var best *Version
	var bestPre *Version
	for _, choice := range choices {
		if !spec.Match(choice) {
			continue
		}
		val := choice
		if choice.IsPreRelease() {
			if bestPre == nil || bestPre.Cmp(choice) < 0 {
				bestPre = &val
			}
		} else {
			if best == nil || best.Cmp(choice) < 0 {
				best = &val
			}
		}
	}
	if best != nil {
		return best
	}
	return bestPre
}
