// package formatter provides functions to export titles dumps to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

// Format is an output format of a dump export.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}
}

// ParseFormat returns the format named s. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Export renders the dump in the given format. title heads the Markdown and text outputs.
func Export(dump models.TitlesDump, format Format, title string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(dump)
	case FormatCSV:
		return ExportToCSV(dump)
	case FormatMarkdown:
		return ExportToMarkdown(dump, title)
	case FormatText:
		return ExportToText(dump, title)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
}

// ExportToJSON writes the dump with four-space indentation and unescaped non-ASCII text.
func ExportToJSON(dump models.TitlesDump) ([]byte, error) {
	if dump == nil {
		dump = models.TitlesDump{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(dump); err != nil {
		return nil, fmt.Errorf("failed to encode dump: %w", err)
	}
	return buf.Bytes(), nil
}

var csvHeaders = []string{"Kind", "Key", "Name", "Original Name", "Type", "Year", "Episodes", "Status", "Genres"}

// ExportToCSV converts the titles of a dump to CSV, one row per title. The errors bucket is skipped.
func ExportToCSV(dump models.TitlesDump) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows(dump) {
		record := []string{
			string(row.kind),
			row.key,
			row.rec.Name,
			row.rec.OriginalName,
			string(row.rec.Type),
			yearString(row.rec.Year),
			episodes(row.rec.EpCount),
			string(row.rec.Status),
			strings.Join(row.rec.Genres, "; "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a dump to Markdown with one section per watchlist kind.
func ExportToMarkdown(dump models.TitlesDump, title string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Titles**: %d\n\n", dump.Total())

	for _, kind := range dump.Kinds() {
		records := dump.Records(kind)
		fmt.Fprintf(&buf, "## %s (%d)\n\n", kind, len(records))
		i := 0
		for _, key := range dump.Keys(string(kind)) {
			rec, ok := records[key]
			if !ok {
				continue
			}
			i++
			fmt.Fprintf(&buf, "%d. %s%s%s\n", i, rec.Name, originalPart(rec), detailPart(rec))
		}
		buf.WriteString("\n")
	}

	if errs := errorEntries(dump); len(errs) > 0 {
		fmt.Fprintf(&buf, "## errors (%d)\n\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(&buf, "- `%s`: %s\n", e.label(), e.detail)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a dump to plain text
func ExportToText(dump models.TitlesDump, title string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dump: %s\n", title)
	fmt.Fprintf(&buf, "Titles: %d\n", dump.Total())

	for _, kind := range dump.Kinds() {
		fmt.Fprintf(&buf, "\n[%s]\n", kind)
		records := dump.Records(kind)
		for _, key := range dump.Keys(string(kind)) {
			if rec, ok := records[key]; ok {
				fmt.Fprintf(&buf, "%s\t%s%s\n", key, rec.Name, detailPart(rec))
			}
		}
	}

	if errs := errorEntries(dump); len(errs) > 0 {
		fmt.Fprintf(&buf, "\n[errors]\n")
		for _, e := range errs {
			fmt.Fprintf(&buf, "%s\t%s\n", e.label(), e.detail)
		}
	}

	return buf.Bytes(), nil
}

// DefaultFilename returns <user>_<module>.<ext>, the name used when no output path is given.
func DefaultFilename(ref models.DumpRef, format Format) string {
	return fmt.Sprintf("%s_%s.%s", ref.User, ref.Module, format.Ext())
}

// WriteExport writes the dump to path in the given format.
//
// Defaults to [DefaultFilename] in the working directory.
func WriteExport(dump models.TitlesDump, ref models.DumpRef, format Format, path string) (string, error) {
	if path == "" {
		path = DefaultFilename(ref, format)
	}

	data, err := Export(dump, format, fmt.Sprintf("%s (%s)", ref.Module, ref.User))
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

type row struct {
	kind models.WatchlistKind
	key  string
	rec  models.AnimeRecord
}

func rows(dump models.TitlesDump) []row {
	var out []row
	for _, kind := range dump.Kinds() {
		records := dump.Records(kind)
		for _, key := range dump.Keys(string(kind)) {
			if rec, ok := records[key]; ok {
				out = append(out, row{kind: kind, key: key, rec: rec})
			}
		}
	}
	return out
}

// errorEntry is one failed title. Parser errors carry the source URL; exporter errors the record name.
type errorEntry struct {
	kind   string
	key    string
	detail string
}

func (e errorEntry) label() string {
	if e.kind == "" {
		return e.key
	}
	return e.kind + "/" + e.key
}

func errorEntries(dump models.TitlesDump) []errorEntry {
	var out []errorEntry
	for _, key := range dump.Keys(models.ErrorsKey) {
		switch v := dump[models.ErrorsKey][key].(type) {
		case string:
			out = append(out, errorEntry{key: key, detail: v})
		case map[string]any:
			if _, ok := v["name"]; ok {
				out = append(out, errorEntry{key: key, detail: recordName(v)})
				continue
			}
			inner := make([]string, 0, len(v))
			for k := range v {
				inner = append(inner, k)
			}
			slices.Sort(inner)
			for _, k := range inner {
				m, _ := v[k].(map[string]any)
				out = append(out, errorEntry{kind: key, key: k, detail: recordName(m)})
			}
		}
	}
	return out
}

func recordName(m map[string]any) string {
	name, _ := m["name"].(string)
	return name
}

func originalPart(rec models.AnimeRecord) string {
	if rec.OriginalName == "" || rec.OriginalName == rec.Name {
		return ""
	}
	return fmt.Sprintf(" / %s", rec.OriginalName)
}

func detailPart(rec models.AnimeRecord) string {
	var parts []string
	if rec.Type != "" {
		parts = append(parts, string(rec.Type))
	}
	if rec.Year != 0 {
		parts = append(parts, strconv.Itoa(rec.Year))
	}
	if rec.EpCount != nil {
		parts = append(parts, episodes(rec.EpCount)+" ep")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func yearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func episodes(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
