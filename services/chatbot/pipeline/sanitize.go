// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline implements the per-request chat pipeline stages:
// sanitization, rate limiting, off-topic classification, role resolution,
// context assembly and prompt construction. Stages are plain injectable
// values so tests can reset state between cases; none of them hides
// module-level singletons.
package pipeline

import (
	"regexp"
	"strings"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// tagPattern matches HTML-like tag substrings, including unterminated
// fragments at end of input.
var tagPattern = regexp.MustCompile(`<[^>]*>?`)

// Sanitize strips tag-like substrings from raw user text, truncates it to
// the pipeline bound and trims surrounding whitespace. It never fails; the
// result may be empty, which the handler rejects as missing input.
func Sanitize(raw string) string {
	cleaned := tagPattern.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, ">", "")
	if runes := []rune(cleaned); len(runes) > datatypes.MaxSanitizedChars {
		cleaned = string(runes[:datatypes.MaxSanitizedChars])
	}
	return strings.TrimSpace(cleaned)
}
