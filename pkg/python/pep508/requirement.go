// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep508 implements PEP 508 -- Dependency specification for Python
// Software Packages: parsing strings of the shape
//
//	name[extra,...] (specifier) ; marker
//
// into structured requirements.  Environment markers are carried verbatim,
// not evaluated.
//
// https://www.python.org/dev/peps/pep-0508/
package pep508

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/datawire/pysolve/pkg/python/pep440"
)

type Requirement struct {
	Name      string
	Extras    []string
	Specifier pep440.Specifier
	// Marker is the raw environment-marker expression after ";", if any.
	Marker string
}

// "the only valid characters in a name are the ASCII alphabet, ASCII
// numbers, `.`, `-`, and `_`", and it must start and end with a letter or
// number.
var nameRe = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)

// ParseRequirement parses one dependency specification.  URL requirements
// (name @ url) are not supported; dependencies must be resolvable by
// version.
func ParseRequirement(str string) (*Requirement, error) {
	var ret Requirement
	rest := strings.TrimSpace(str)

	if semi := strings.Index(rest, ";"); semi >= 0 {
		ret.Marker = strings.TrimSpace(rest[semi+1:])
		rest = strings.TrimSpace(rest[:semi])
	}
	if strings.Contains(rest, "@") {
		return nil, fmt.Errorf("pep508.ParseRequirement: URL requirements are not supported: %q", str)
	}

	name := nameRe.FindString(rest)
	if name == "" {
		return nil, fmt.Errorf("pep508.ParseRequirement: invalid requirement: %q", str)
	}
	ret.Name = name
	rest = strings.TrimSpace(rest[len(name):])

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, fmt.Errorf("pep508.ParseRequirement: unterminated extras in %q", str)
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra != "" {
				ret.Extras = append(ret.Extras, extra)
			}
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	// a parenthesized specifier is legal and equivalent to a bare one
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")"))
	spec, err := pep440.ParseSpecifier(rest)
	if err != nil {
		return nil, fmt.Errorf("pep508.ParseRequirement: %q: %w", str, err)
	}
	ret.Specifier = spec
	return &ret, nil
}

func (req Requirement) String() string {
	var ret strings.Builder
	ret.WriteString(req.Name)
	if len(req.Extras) > 0 {
		ret.WriteByte('[')
		ret.WriteString(strings.Join(req.Extras, ","))
		ret.WriteByte(']')
	}
	if len(req.Specifier) > 0 {
		ret.WriteString(req.Specifier.String())
	}
	if req.Marker != "" {
		ret.WriteString(" ; ")
		ret.WriteString(req.Marker)
	}
	return ret.String()
}
