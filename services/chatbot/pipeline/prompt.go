// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// BuildSystemPrompt assembles the system prompt from four parts: the
// role-specific persona sentence, the fixed rules block, the fixed contact
// block, and the assembled context prefixed with a localized label. The
// context part is omitted entirely when contextStr is empty.
//
// Assembly is pure table lookup; there is no conditional logic beyond it.
// A (role, language) pair missing from any table is a programming error and
// panics so it is caught during development instead of silently producing a
// degraded prompt.
func BuildSystemPrompt(role datatypes.UserRole, contextStr string, lang datatypes.Language) string {
	persona, ok := personas[role][lang]
	if !ok {
		panic(fmt.Sprintf("BuildSystemPrompt: no persona for role=%q language=%q", role, lang))
	}
	rules, ok := rulesBlocks[lang]
	if !ok {
		panic(fmt.Sprintf("BuildSystemPrompt: no rules block for language=%q", lang))
	}
	contact, ok := contactBlocks[lang]
	if !ok {
		panic(fmt.Sprintf("BuildSystemPrompt: no contact block for language=%q", lang))
	}
	label, ok := contextLabels[lang]
	if !ok {
		panic(fmt.Sprintf("BuildSystemPrompt: no context label for language=%q", lang))
	}

	parts := []string{persona, rules, contact}
	if contextStr != "" {
		parts = append(parts, label+"\n"+contextStr)
	}
	return strings.Join(parts, "\n\n")
}
