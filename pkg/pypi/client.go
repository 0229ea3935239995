// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pypi implements a client for the PyPI JSON API
// (https://warehouse.pypa.io/api-reference/json/), which is where release
// metadata such as a distribution's requirements actually lives; the PEP 503
// HTML index only knows about files.
package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"

	"github.com/datawire/pysolve/pkg/python/pep440"
	"github.com/datawire/pysolve/pkg/python/pep503"
)

type Client struct {
	// BaseURL is the API root, not the /simple/ index root.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

const PyPIBaseURL = "https://pypi.org/"

func (c *Client) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = PyPIBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/datawire/pysolve/pkg/pypi"
	}
}

// ReleaseMetadata is the slice of the JSON API's "info" object that
// dependency resolution needs.
type ReleaseMetadata struct {
	Name           string
	Version        pep440.Version
	RequiresDist   []string
	RequiresPython string
}

type jsonResponse struct {
	Info struct {
		Name           string   `json:"name"`
		Version        string   `json:"version"`
		RequiresDist   []string `json:"requires_dist"`
		RequiresPython string   `json:"requires_python"`
	} `json:"info"`
	Releases map[string]json.RawMessage `json:"releases"`
}

func (c Client) get(ctx context.Context, requestURL string) (_ []byte, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("GET %q => %w", requestURL, err)
		}
	}()
	c.fillDefaults()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, &pep503.HTTPError{Status: resp.Status, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (c Client) projectURL(name string, version *pep440.Version) (string, error) {
	c.fillDefaults()
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	if version == nil {
		u.Path = path.Join(u.Path, "pypi", pep503.NormalizeName(name), "json")
	} else {
		u.Path = path.Join(u.Path, "pypi", pep503.NormalizeName(name), version.String(), "json")
	}
	return u.String(), nil
}

// ListVersions returns every version of the project that has a release,
// sorted ascending.
func (c Client) ListVersions(ctx context.Context, name string) ([]pep440.Version, error) {
	requestURL, err := c.projectURL(name, nil)
	if err != nil {
		return nil, err
	}
	content, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	var parsed jsonResponse
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("pypi.ListVersions: %q: %w", name, err)
	}
	ret := make([]pep440.Version, 0, len(parsed.Releases))
	for verStr := range parsed.Releases {
		ver, err := pep440.ParseVersion(verStr)
		if err != nil {
			continue // non-PEP-440 releases are invisible to resolution
		}
		ret = append(ret, *ver)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Cmp(ret[j]) < 0 })
	return ret, nil
}

// Metadata returns the release metadata of one (project, version).
func (c Client) Metadata(ctx context.Context, name string, version pep440.Version) (*ReleaseMetadata, error) {
	requestURL, err := c.projectURL(name, &version)
	if err != nil {
		return nil, err
	}
	content, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	var parsed jsonResponse
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("pypi.Metadata: %q %s: %w", name, version, err)
	}
	ver, err := pep440.ParseVersion(parsed.Info.Version)
	if err != nil {
		ver = &version
	}
	return &ReleaseMetadata{
		Name:           pep503.NormalizeName(parsed.Info.Name),
		Version:        *ver,
		RequiresDist:   parsed.Info.RequiresDist,
		RequiresPython: parsed.Info.RequiresPython,
	}, nil
}
