// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package provider adapts a package index to the resolver's Provider
// boundary: it turns PEP 508 requirement strings into candidate packages and
// dependency lists, and escalates mutually exclusive requirement sets as
// OverrideNeeded instead of guessing.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/pysolve/pkg/pypi"
	"github.com/datawire/pysolve/pkg/python/pep440"
	"github.com/datawire/pysolve/pkg/python/pep503"
	"github.com/datawire/pysolve/pkg/python/pep508"
	"github.com/datawire/pysolve/pkg/resolver"
)

// A Package is one resolvable candidate: a (project, version) pair.  It is
// what ends up as a vertex payload in the resolved graph.
type Package struct {
	Name    string
	Version pep440.Version
}

func (p Package) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Version)
}

// IndexProvider implements resolver.OverridableProvider on top of the PyPI
// JSON API.
type IndexProvider struct {
	Client *pypi.Client

	overrides map[string]interface{}
}

var _ resolver.OverridableProvider = (*IndexProvider)(nil)

func NewIndexProvider(client *pypi.Client) *IndexProvider {
	if client == nil {
		client = &pypi.Client{}
	}
	return &IndexProvider{Client: client}
}

// Relation classifies how two specifiers on one project relate, judged
// against a finite universe of known candidate versions.
func Relation(a, b pep440.Specifier, universe []pep440.Version) resolver.SetRelation {
	var aOnly, bOnly, both int
	for _, ver := range universe {
		inA := a.Match(ver)
		inB := b.Match(ver)
		switch {
		case inA && inB:
			both++
		case inA:
			aOnly++
		case inB:
			bOnly++
		}
	}
	switch {
	case both == 0:
		return resolver.RelationDisjoint
	case aOnly == 0 || bOnly == 0:
		return resolver.RelationSubset
	default:
		return resolver.RelationOverlapping
	}
}

func (p *IndexProvider) NameFor(item interface{}) string {
	switch item := item.(type) {
	case pep508.Requirement:
		return pep503.NormalizeName(item.Name)
	case *pep508.Requirement:
		return pep503.NormalizeName(item.Name)
	case Package:
		return pep503.NormalizeName(item.Name)
	default:
		return fmt.Sprintf("%v", item)
	}
}

func asRequirement(item interface{}) (pep508.Requirement, error) {
	switch item := item.(type) {
	case pep508.Requirement:
		return item, nil
	case *pep508.Requirement:
		return *item, nil
	default:
		return pep508.Requirement{}, fmt.Errorf("provider: not a requirement: %v", item)
	}
}

// SearchFor returns the candidate packages for a requirement, sorted with
// the most-preferred (highest) version last.  Pre-releases are candidates
// only when no final release satisfies the specifier.
func (p *IndexProvider) SearchFor(ctx context.Context, requirement interface{}) ([]interface{}, error) {
	req, err := asRequirement(requirement)
	if err != nil {
		return nil, err
	}
	name := p.NameFor(req)
	versions, err := p.Client.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}

	var finals, pres []pep440.Version
	for _, ver := range versions {
		if !req.Specifier.Match(ver) {
			continue
		}
		if ver.IsPreRelease() {
			pres = append(pres, ver)
		} else {
			finals = append(finals, ver)
		}
	}
	matched := finals
	if len(matched) == 0 {
		matched = pres
	}
	ret := make([]interface{}, 0, len(matched))
	for _, ver := range matched {
		ret = append(ret, Package{Name: name, Version: ver})
	}
	return ret, nil
}

// DependenciesFor returns a package's requirements.  Requirements gated on
// an "extra" marker are dropped (extras are not resolved).  When the
// metadata lists one dependency several times with specifiers that admit no
// common version, there is no single correct dependency list, so the
// proposals are escalated as *OverrideNeeded, one override per variant.
func (p *IndexProvider) DependenciesFor(ctx context.Context, pkgItem interface{}) ([]interface{}, error) {
	pkg, ok := pkgItem.(Package)
	if !ok {
		return nil, fmt.Errorf("provider: not a package: %v", pkgItem)
	}
	md, err := p.Client.Metadata(ctx, pkg.Name, pkg.Version)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]pep508.Requirement)
	var order []string
	for _, depStr := range md.RequiresDist {
		dep, err := pep508.ParseRequirement(depStr)
		if err != nil {
			p.Debug(ctx, fmt.Sprintf("Skipping unparseable requirement %q: %v", depStr, err), 1)
			continue
		}
		if strings.Contains(dep.Marker, "extra") {
			continue
		}
		name := p.NameFor(*dep)
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], *dep)
	}

	var ret []interface{}
	for _, name := range order {
		if override, ok := p.overrides[name]; ok {
			ret = append(ret, override)
			continue
		}
		variants := byName[name]
		merged, overrideNeeded, err := p.mergeVariants(ctx, name, variants)
		if err != nil {
			return nil, err
		}
		if overrideNeeded != nil {
			return nil, overrideNeeded
		}
		ret = append(ret, merged)
	}
	return ret, nil
}

// mergeVariants combines several requirements on the same project into one.
// Disjoint variants cannot be combined; they become override proposals.
func (p *IndexProvider) mergeVariants(
	ctx context.Context,
	name string,
	variants []pep508.Requirement,
) (interface{}, *resolver.OverrideNeeded, error) {
	if len(variants) == 1 {
		return variants[0], nil, nil
	}
	universe, err := p.Client.ListVersions(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	merged := variants[0]
	for _, variant := range variants[1:] {
		if Relation(merged.Specifier, variant.Specifier, universe) == resolver.RelationDisjoint {
			p.Debug(ctx, fmt.Sprintf("Different requirements found for %s", name), 1)
			overrides := make([]map[string]interface{}, 0, len(variants))
			for _, v := range variants {
				overrides = append(overrides, map[string]interface{}{name: v})
			}
			return nil, resolver.NewOverrideNeeded(overrides...), nil
		}
		combined := merged
		combined.Specifier = append(append(pep440.Specifier(nil), merged.Specifier...), variant.Specifier...)
		combined.Marker = ""
		merged = combined
	}
	return merged, nil, nil
}

func (p *IndexProvider) IsRequirementSatisfiedBy(requirement, pkgItem interface{}) bool {
	req, err := asRequirement(requirement)
	if err != nil {
		return false
	}
	pkg, ok := pkgItem.(Package)
	if !ok {
		return false
	}
	if p.NameFor(req) != pep503.NormalizeName(pkg.Name) {
		return false
	}
	return req.Specifier.Match(pkg.Version)
}

func (p *IndexProvider) Debug(ctx context.Context, message string, depth int) {
	dlog.Debugf(ctx, "%s%s", strings.Repeat("  ", depth), message)
}

// WithOverrides returns a provider whose DependenciesFor substitutes the
// given requirements, keyed by normalized project name, for whatever the
// metadata says.  Overrides accumulate across calls.
func (p *IndexProvider) WithOverrides(overrides map[string]interface{}) resolver.OverridableProvider {
	merged := make(map[string]interface{}, len(p.overrides)+len(overrides))
	for name, req := range p.overrides {
		merged[name] = req
	}
	for name, req := range overrides {
		merged[pep503.NormalizeName(name)] = req
	}
	return &IndexProvider{
		Client:    p.Client,
		overrides: merged,
	}
}
