// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep440 implements PEP 440 -- Version Identification and Dependency
// Specification: the version scheme
//
//	[N!]N(.N)*[{a|b|rc}N][.postN][.devN][+local]
//
// with the consistent total ordering the PEP defines, and version specifiers
// built from comparison clauses.
//
// https://www.python.org/dev/peps/pep-0440/
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

type PreRelease struct {
	L string // "a", "b", or "rc" after normalization
	N int
}

type Version struct {
	// Epoch segment: "N!"
	Epoch int
	// Release segment: "N(.N)*"
	Release []int
	// Pre-release segment: "{a|b|rc}N"
	Pre *PreRelease
	// Post-release segment: ".postN"
	Post *int
	// Development release segment: ".devN"
	Dev *int
	// Local version segments: "+foo.1.bar"; numeric segments order
	// numerically and above alphanumeric ones.
	Local []intstr.IntOrString
}

// parseRe is the permissive form from PEP 440 Appendix B; normalization
// happens while picking the groups apart.
var parseRe = regexp.MustCompile(`(?i)^v?` +
	`(?:(\d+)!)?` + // epoch
	`(\d+(?:\.\d+)*)` + // release
	`(?:[-_.]?(a|b|c|rc|alpha|beta|pre|preview)[-_.]?(\d+)?)?` + // pre
	`(?:-(\d+)|[-_.]?(post|rev|r)[-_.]?(\d+)?)?` + // post
	`(?:[-_.]?(dev)[-_.]?(\d+)?)?` + // dev
	`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?` + // local
	`$`)

// ParseVersion parses a version string, performing the normalizations the
// PEP requires (case, alternate pre-release spellings, implicit zeros).
func ParseVersion(str string) (*Version, error) {
	groups := parseRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(str)))
	if groups == nil {
		return nil, fmt.Errorf("pep440.ParseVersion: invalid version: %q", str)
	}
	var ret Version
	if groups[1] != "" {
		ret.Epoch, _ = strconv.Atoi(groups[1])
	}
	for _, part := range strings.Split(groups[2], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseVersion: invalid version: %q: %w", str, err)
		}
		ret.Release = append(ret.Release, n)
	}
	if groups[3] != "" {
		letter := map[string]string{
			"a": "a", "alpha": "a",
			"b": "b", "beta": "b",
			"c": "rc", "rc": "rc", "pre": "rc", "preview": "rc",
		}[groups[3]]
		n, _ := strconv.Atoi(groups[4]) // empty means implicit 0
		ret.Pre = &PreRelease{L: letter, N: n}
	}
	if groups[5] != "" || groups[6] != "" {
		n := 0
		if groups[5] != "" {
			n, _ = strconv.Atoi(groups[5])
		} else if groups[7] != "" {
			n, _ = strconv.Atoi(groups[7])
		}
		ret.Post = &n
	}
	if groups[8] != "" {
		n, _ := strconv.Atoi(groups[9])
		ret.Dev = &n
	}
	if groups[10] != "" {
		for _, part := range strings.FieldsFunc(groups[10], func(r rune) bool {
			return r == '-' || r == '_' || r == '.'
		}) {
			ret.Local = append(ret.Local, intstr.Parse(part))
		}
	}
	return &ret, nil
}

// MustParseVersion is ParseVersion for statically-known strings.
func MustParseVersion(str string) Version {
	ver, err := ParseVersion(str)
	if err != nil {
		panic(err)
	}
	return *ver
}

// String renders the canonical form.  It does not perform any normalization
// beyond what ParseVersion already did.
func (ver Version) String() string {
	var ret strings.Builder
	if ver.Epoch > 0 {
		fmt.Fprintf(&ret, "%d!", ver.Epoch)
	}
	for i, segment := range ver.Release {
		if i > 0 {
			ret.WriteByte('.')
		}
		fmt.Fprintf(&ret, "%d", segment)
	}
	if ver.Pre != nil {
		fmt.Fprintf(&ret, "%s%d", ver.Pre.L, ver.Pre.N)
	}
	if ver.Post != nil {
		fmt.Fprintf(&ret, ".post%d", *ver.Post)
	}
	if ver.Dev != nil {
		fmt.Fprintf(&ret, ".dev%d", *ver.Dev)
	}
	if len(ver.Local) > 0 {
		ret.WriteByte('+')
		for i, segment := range ver.Local {
			if i > 0 {
				ret.WriteByte('.')
			}
			ret.WriteString(segment.String())
		}
	}
	return ret.String()
}

// IsPreRelease reports whether the version is a pre-release of any kind,
// developmental releases included.
func (ver Version) IsPreRelease() bool {
	return ver.Pre != nil || ver.Dev != nil
}

var preReleaseOrder = map[string]int{
	"a":  0,
	"b":  1,
	"rc": 2,
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpRelease(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		// zero padding: a missing segment compares as 0
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if d := cmpInt(av, bv); d != 0 {
			return d
		}
	}
	return 0
}

// preClass buckets a version for the pre-release comparison: a bare dev
// release sorts below any pre-release, which sorts below the final release.
func preClass(ver Version) int {
	switch {
	case ver.Pre != nil:
		return 0
	case ver.Post == nil && ver.Dev != nil:
		return -1
	default:
		return 1
	}
}

func cmpPreRelease(a, b Version) int {
	if d := cmpInt(preClass(a), preClass(b)); d != 0 {
		return d
	}
	if a.Pre == nil || b.Pre == nil {
		return 0
	}
	if d := cmpInt(preReleaseOrder[a.Pre.L], preReleaseOrder[b.Pre.L]); d != 0 {
		return d
	}
	return cmpInt(a.Pre.N, b.Pre.N)
}

func cmpPostRelease(a, b Version) int {
	av, bv := -1, -1
	if a.Post != nil {
		av = *a.Post
	}
	if b.Post != nil {
		bv = *b.Post
	}
	return cmpInt(av, bv)
}

func cmpDevRelease(a, b Version) int {
	// a release without a dev-part sorts above any dev release of itself
	aClass, bClass := 1, 1
	av, bv := 0, 0
	if a.Dev != nil {
		aClass, av = 0, *a.Dev
	}
	if b.Dev != nil {
		bClass, bv = 0, *b.Dev
	}
	if d := cmpInt(aClass, bClass); d != 0 {
		return d
	}
	return cmpInt(av, bv)
}

func cmpLocal(a, b []intstr.IntOrString) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		switch {
		case i >= len(a):
			return -1
		case i >= len(b):
			return 1
		}
		if d := cmpLocalSegment(a[i], b[i]); d != 0 {
			return d
		}
	}
	return 0
}

func cmpLocalSegment(a, b intstr.IntOrString) int {
	// numeric segments order above alphanumeric ones
	aNum := a.Type == intstr.Int
	bNum := b.Type == intstr.Int
	switch {
	case aNum && !bNum:
		return 1
	case !aNum && bNum:
		return -1
	case aNum && bNum:
		return cmpInt(int(a.IntVal), int(b.IntVal))
	default:
		return strings.Compare(a.StrVal, b.StrVal)
	}
}

// Cmp returns -1, 0, or 1 as ver sorts before, the same as, or after other
// under the PEP's consistent ordering.
func (ver Version) Cmp(other Version) int {
	if d := cmpInt(ver.Epoch, other.Epoch); d != 0 {
		return d
	}
	if d := cmpRelease(ver.Release, other.Release); d != 0 {
		return d
	}
	if d := cmpPreRelease(ver, other); d != 0 {
		return d
	}
	if d := cmpPostRelease(ver, other); d != 0 {
		return d
	}
	if d := cmpDevRelease(ver, other); d != 0 {
		return d
	}
	return cmpLocal(ver.Local, other.Local)
}

// PublicCmp is Cmp ignoring the local version labels on both sides, which is
// what specifier matching calls for.
func (ver Version) PublicCmp(other Version) int {
	ver.Local = nil
	other.Local = nil
	return ver.Cmp(other)
}
