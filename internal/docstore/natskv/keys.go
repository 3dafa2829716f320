// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package natskv

import (
	"fmt"
	"strings"

	"github.com/tomtom215/teleshow/internal/docstore"
)

// Document paths map onto KV keys by replacing "/" with ".", so a
// collection's direct children are matched by the single-token wildcard
// "<collection>.*".

func validSegment(seg string) bool {
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '=':
		default:
			return false
		}
	}
	return seg != ""
}

// keyFor converts a document or collection path to a KV key.
func keyFor(p string) (string, error) {
	parts, err := docstore.SplitPath(p)
	if err != nil {
		return "", err
	}
	for _, seg := range parts {
		if !validSegment(seg) {
			return "", fmt.Errorf("%w: segment %q not addressable", docstore.ErrInvalidPath, seg)
		}
	}
	return strings.Join(parts, "."), nil
}

// watchPattern returns the key filter for ref.
func watchPattern(ref docstore.Ref) (string, error) {
	key, err := keyFor(ref.Path)
	if err != nil {
		return "", err
	}
	if ref.Document {
		return key, nil
	}
	return key + ".*", nil
}

// docID returns the last token of a key.
func docID(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}
