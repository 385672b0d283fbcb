// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package catalog reads catalog rows from CSV exports.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/recommend"
)

// maxRuntime bounds accepted runtime values so the int conversion is exact.
const maxRuntime = math.MaxInt32

// Header aliases recognized for each field, compared case-insensitively.
var columnAliases = map[string][]string{
	"id":       {"id", "movieid", "movie_id", "item_id"},
	"title":    {"title", "name"},
	"genres":   {"genres", "genre"},
	"overview": {"overview", "description", "plot"},
	"runtime":  {"runtime", "duration"},
}

// CSVProvider reads raw rows from a CSV file with a header line.
// It implements recommend.CatalogProvider.
type CSVProvider struct {
	// Path of the CSV file.
	Path string

	// Comma is the field separator. Zero means ','.
	Comma rune

	Logger zerolog.Logger
}

// Rows reads the whole file. Unreadable files and malformed CSV fail with
// recommend.ErrBuildFailure; individual fields that cannot be parsed are
// left empty.
func (p *CSVProvider) Rows(ctx context.Context) ([]recommend.RawRow, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open catalog: %v", recommend.ErrBuildFailure, err)
	}
	defer f.Close()

	rows, err := ReadCSV(ctx, f, p.Comma)
	if err != nil {
		return nil, err
	}
	p.Logger.Debug().Str("path", p.Path).Int("rows", len(rows)).Msg("catalog read")
	return rows, nil
}

// ReadCSV parses catalog rows from r. The header must contain a title column;
// the other columns are optional. Records that repeat an earlier record
// field for field are dropped before numbering, and rows without a usable id
// are numbered from 1 in the order they are kept.
func ReadCSV(ctx context.Context, r io.Reader, comma rune) ([]recommend.RawRow, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: catalog is empty", recommend.ErrBuildFailure)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", recommend.ErrBuildFailure, err)
	}

	cols := mapColumns(header)
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("%w: catalog header has no title column", recommend.ErrBuildFailure)
	}

	var rows []recommend.RawRow
	seen := make(map[recordKey]struct{})
	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", recommend.ErrBuildFailure, line+1, err)
		}
		key := keyOf(record, cols)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, toRow(record, cols, len(rows)+1))
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for field, aliases := range columnAliases {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[field] = i
				}
			}
		}
	}
	return cols
}

// recordKey holds the mapped fields of a record as read.
type recordKey struct {
	id, title, genres, overview, runtime string
}

func keyOf(record []string, cols map[string]int) recordKey {
	return recordKey{
		id:       column(record, cols, "id"),
		title:    column(record, cols, "title"),
		genres:   column(record, cols, "genres"),
		overview: column(record, cols, "overview"),
		runtime:  column(record, cols, "runtime"),
	}
}

func column(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func toRow(record []string, cols map[string]int, seq int) recommend.RawRow {
	field := func(name string) string {
		return column(record, cols, name)
	}

	row := recommend.RawRow{
		ID:       seq,
		Title:    field("title"),
		Genres:   field("genres"),
		Overview: field("overview"),
	}
	if id, err := strconv.Atoi(field("id")); err == nil {
		row.ID = id
	}
	if rt, err := strconv.ParseFloat(field("runtime"), 64); err == nil && validRuntime(rt) {
		v := int(rt)
		row.Runtime = &v
	}
	return row
}

func validRuntime(rt float64) bool {
	return !math.IsNaN(rt) && !math.IsInf(rt, 0) && rt >= 0 && rt <= maxRuntime
}
