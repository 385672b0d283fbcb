// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package recommend

import (
	"strings"
	"unicode"
)

// noGenresPlaceholder is how some catalog exports spell an empty genre field.
const noGenresPlaceholder = "(no genres listed)"

// rowKey is the comparable identity of a RawRow used for duplicate detection.
type rowKey struct {
	id         int
	title      string
	genres     string
	overview   string
	hasRuntime bool
	runtime    int
}

func keyOf(r RawRow) rowKey {
	k := rowKey{id: r.ID, title: r.Title, genres: r.Genres, overview: r.Overview}
	if r.Runtime != nil {
		k.hasRuntime = true
		k.runtime = *r.Runtime
	}
	return k
}

// Prepare cleans raw rows into a corpus. Exact duplicate rows are dropped,
// keeping the first occurrence. Rows with missing fields degrade to empty
// values and are never rejected.
func Prepare(rows []RawRow, genreDelimiter string) Corpus {
	if genreDelimiter == "" {
		genreDelimiter = "|"
	}

	seen := make(map[rowKey]struct{}, len(rows))
	corpus := make(Corpus, 0, len(rows))
	for _, row := range rows {
		k := keyOf(row)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		corpus = append(corpus, prepareRow(row, genreDelimiter))
	}
	return corpus
}

func prepareRow(row RawRow, genreDelimiter string) CatalogItem {
	genres := splitGenres(row.Genres, genreDelimiter)
	overview := strings.Fields(row.Overview)

	tags := make([]string, 0, len(overview)+len(genres))
	for _, tok := range overview {
		if s := stem(tok); s != "" {
			tags = append(tags, s)
		}
	}
	for _, g := range genres {
		if s := stem(g); s != "" {
			tags = append(tags, s)
		}
	}

	var runtime *int
	if row.Runtime != nil {
		v := *row.Runtime
		runtime = &v
	}

	return CatalogItem{
		ID:             row.ID,
		Title:          row.Title,
		Genres:         genres,
		OverviewTokens: overview,
		Runtime:        runtime,
		Tags:           strings.Join(tags, " "),
	}
}

// splitGenres splits a raw genre field and strips whitespace inside each
// genre so multi-word genres stay single tokens.
func splitGenres(field, delimiter string) []string {
	field = strings.TrimSpace(field)
	if field == "" || strings.EqualFold(field, noGenresPlaceholder) {
		return []string{}
	}

	parts := strings.Split(field, delimiter)
	genres := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		g := stripSpace(p)
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		genres = append(genres, g)
	}
	return genres
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
