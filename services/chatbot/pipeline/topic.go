// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"regexp"
	"strings"
)

// Off-topic pre-filter. A cheap heuristic to avoid spending an upstream
// model call on questions clearly unrelated to the platform: weather,
// sports, recipes, travel, entertainment, general trivia, in all three
// supported languages. False positives and negatives are expected and
// acceptable; the education-context override below keeps mixed queries
// ("météo AVS formation") in scope.
//
// The keyword table is shared by both chat endpoints. It is configuration
// data, maintained here in one place rather than drifting per endpoint.
var offTopicKeywords = []string{
	// Weather
	"météo", "meteo", "weather", "الطقس", "temps qu'il fait", "quel temps",
	"pluie", "forecast",
	// Sports
	"sport", "football", "match ", "ligue", "basketball", "tennis",
	"champions league", "كرة القدم", "مباراة",
	// Food and recipes
	"recette", "cuisine", "recipe", "cooking", "tajine", "وصفة", "طبخ",
	// Travel
	"voyage", "travel", "hôtel", "hotel", "billet d'avion", "flight",
	"tourisme", "سفر", "فندق",
	// Entertainment
	"film", "movie", "série", "netflix", "musique", "music", "chanson",
	"concert", "فيلم", "أغنية", "مسلسل",
	// General trivia and news
	"horoscope", "blague", "joke", "actualité", "news du jour", "politique",
	"élection", "bitcoin", "crypto", "bourse", "حظك اليوم", "أخبار",
}

// educationContextPattern matches platform and education terms. Any hit
// overrides an off-topic keyword match for messages longer than two words.
var educationContextPattern = regexp.MustCompile(`(?i)` +
	`avs|formation|cours|course|module|diplôme|diplome|diploma|certificat|certificate|` +
	`inscription|enroll|enrol|admission|campus|plateforme|platform|` +
	`professeur|professor|enseignant|étudiant|etudiant|student|` +
	`note|notes|grade|examen|exam|devoir|assignment|classe|class|` +
	`tarif|prix|frais|scolarité|scolarite|` +
	`تكوين|دورة|تسجيل|أستاذ|طالب|شهادة|نقطة|امتحان|منصة`)

// IsOffTopicQuery reports whether a message should skip the model entirely.
//
// Bare one or two word queries that hit an off-topic keyword are rejected
// immediately; they carry no context for the override to work with. Longer
// messages are rejected only when an off-topic keyword matches and no
// education-context term does.
func IsOffTopicQuery(message string) bool {
	lower := strings.ToLower(message)
	wordCount := len(strings.Fields(lower))

	matched := false
	for _, kw := range offTopicKeywords {
		if strings.Contains(lower, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if wordCount <= 2 {
		return true
	}
	return !educationContextPattern.MatchString(lower)
}
