// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep508_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pysolve/pkg/python/pep508"
)

func TestParseRequirement(t *testing.T) {
	t.Parallel()
	type testcase struct {
		name      string
		extras    []string
		specifier string
		marker    string
	}
	testcases := map[string]testcase{
		"requests": {
			name: "requests",
		},
		"requests >=2.8.1": {
			name:      "requests",
			specifier: ">=2.8.1",
		},
		"requests (>=2.8.1, ==2.8.*)": {
			name:      "requests",
			specifier: ">=2.8.1,==2.8.*",
		},
		"requests[security,socks] >=2.8.1": {
			name:      "requests",
			extras:    []string{"security", "socks"},
			specifier: ">=2.8.1",
		},
		`importlib-metadata >=1.0 ; python_version < "3.8"`: {
			name:      "importlib-metadata",
			specifier: ">=1.0",
			marker:    `python_version < "3.8"`,
		},
		`win-inet-pton ; sys_platform == "win32"`: {
			name:   "win-inet-pton",
			marker: `sys_platform == "win32"`,
		},
		"Zope.Interface": {
			name: "Zope.Interface",
		},
	}
	for input, expected := range testcases {
		input, expected := input, expected
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			req, err := pep508.ParseRequirement(input)
			require.NoError(t, err)
			assert.Equal(t, expected.name, req.Name)
			assert.Equal(t, expected.extras, req.Extras)
			assert.Equal(t, expected.specifier, req.Specifier.String())
			assert.Equal(t, expected.marker, req.Marker)
		})
	}
}

func TestParseRequirementInvalid(t *testing.T) {
	t.Parallel()
	for _, input := range []string{
		"",
		"-leading-dash",
		"pip @ https://github.com/pypa/pip/archive/1.3.1.zip",
		"name[unterminated >=1.0",
		"name ===1.0",
	} {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			_, err := pep508.ParseRequirement(input)
			assert.Error(t, err)
		})
	}
}

func TestRequirementString(t *testing.T) {
	t.Parallel()
	for _, str := range []string{
		"requests",
		"requests>=2.8.1",
		"requests[security,socks]>=2.8.1",
		`importlib-metadata>=1.0 ; python_version < "3.8"`,
	} {
		req, err := pep508.ParseRequirement(str)
		require.NoError(t, err)
		assert.Equal(t, str, req.String())
	}
}
