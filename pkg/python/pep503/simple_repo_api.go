// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep503 implements the client side of PEP 503 -- Simple Repository
// API: the HTML project index that package tools scrape for release files.
//
// https://www.python.org/dev/peps/pep-0503/
package pep503

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/datawire/pysolve/pkg/python/pep440"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

const PyPIBaseURL = "https://pypi.org/simple/"

func (c *Client) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = PyPIBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/datawire/pysolve/pkg/python/pep503"
	}
}

type HTTPError struct {
	Status     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s", e.Status)
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// NormalizeName lowercases a project name and collapses runs of the
// separator characters to a single dash, per the PEP.
func NormalizeName(str string) string {
	return strings.ToLower(normalizeRe.ReplaceAllLiteralString(str, "-"))
}

func (c Client) get(ctx context.Context, requestURL string) (_ *url.URL, _ []byte, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("GET %q => %w", requestURL, err)
		}
	}()
	c.fillDefaults()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, nil, err
	}
	if err := resp.Body.Close(); err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &HTTPError{Status: resp.Status, StatusCode: resp.StatusCode}
	}
	return resp.Request.URL, content, nil
}

type Link struct {
	Text string
	HRef string
}

// links fetches an index page and extracts every anchor, resolving hrefs
// against the final request URL.
func (c Client) links(ctx context.Context, requestURL string) ([]Link, error) {
	location, content, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var ret []Link
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			var link Link
			for _, attr := range node.Attr {
				if attr.Namespace == "" && attr.Key == "href" {
					if href, err := location.Parse(attr.Val); err == nil {
						link.HRef = href.String()
					}
				}
			}
			var text strings.Builder
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					text.WriteString(child.Data)
				}
			}
			link.Text = strings.TrimSpace(text.String())
			ret = append(ret, link)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return ret, nil
}

// ListProjects returns the normalized names of every project in the index.
func (c Client) ListProjects(ctx context.Context) ([]string, error) {
	c.fillDefaults()
	links, err := c.links(ctx, c.BaseURL)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(links))
	for _, link := range links {
		ret = append(ret, NormalizeName(link.Text))
	}
	return ret, nil
}

// ListFiles returns the release-file links of one project.
func (c Client) ListFiles(ctx context.Context, name string) ([]Link, error) {
	c.fillDefaults()
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, NormalizeName(name)) + "/"
	return c.links(ctx, u.String())
}

var sdistExtensions = []string{".tar.gz", ".tar.bz2", ".zip"}

// VersionFromFilename extracts the version from a release filename, either a
// wheel ("name-1.0-py3-none-any.whl") or an sdist ("name-1.0.tar.gz").
func VersionFromFilename(project, filename string) (*pep440.Version, error) {
	if strings.HasSuffix(filename, ".whl") {
		parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
		if len(parts) < 2 {
			return nil, fmt.Errorf("pep503: malformed wheel filename: %q", filename)
		}
		return pep440.ParseVersion(parts[1])
	}
	for _, ext := range sdistExtensions {
		if !strings.HasSuffix(filename, ext) {
			continue
		}
		stem := strings.TrimSuffix(filename, ext)
		sep := strings.LastIndex(stem, "-")
		if sep < 0 || NormalizeName(stem[:sep]) != NormalizeName(project) {
			return nil, fmt.Errorf("pep503: sdist filename %q does not match project %q",
				filename, project)
		}
		return pep440.ParseVersion(stem[sep+1:])
	}
	return nil, fmt.Errorf("pep503: unrecognized release filename: %q", filename)
}

// ListVersions returns the distinct versions that have at least one release
// file in the index, in index order.  Files whose names don't parse are
// skipped rather than failing the listing.
func (c Client) ListVersions(ctx context.Context, name string) ([]pep440.Version, error) {
	files, err := c.ListFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	var ret []pep440.Version
	seen := make(map[string]struct{})
	for _, file := range files {
		ver, err := VersionFromFilename(name, file.Text)
		if err != nil {
			continue
		}
		key := ver.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ret = append(ret, *ver)
	}
	return ret, nil
}
