package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

// DefaultDelimiter separates header names and row values.
const DefaultDelimiter = ","

// ErrEmptyDataset is returned when the source text has no header line.
var ErrEmptyDataset = errors.New("dataset has no header line")

// MalformedRow describes a line dropped because its value count did not match
// the header. Line is 1-based and counts the header as line 1.
type MalformedRow struct {
	Line int    `json:"line"`
	Got  int    `json:"got"`
	Want int    `json:"want"`
	Raw  string `json:"-"`
}

type ParseResult struct {
	Fields    []string
	Records   []domain.Record
	Malformed []MalformedRow
}

// ParseRecords splits raw into records using the first line as field names.
// Values are split on delimiter without any quoting support.
func ParseRecords(raw, delimiter string) (ParseResult, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	lines := strings.Split(raw, "\n")

	header := strings.TrimRight(lines[0], "\r")
	if strings.TrimSpace(header) == "" {
		return ParseResult{}, ErrEmptyDataset
	}
	fields := strings.Split(header, delimiter)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	res := ParseResult{Fields: fields}
	for i, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := strings.Split(line, delimiter)
		if len(values) != len(fields) {
			res.Malformed = append(res.Malformed, MalformedRow{
				Line: i + 2,
				Got:  len(values),
				Want: len(fields),
				Raw:  line,
			})
			continue
		}
		rec := make(domain.Record, len(fields))
		for j, f := range fields {
			rec[f] = values[j]
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// LoadRecordsFromFile reads and parses a dataset file.
func LoadRecordsFromFile(path, delimiter string) (ParseResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read dataset file: %w", err)
	}
	res, err := ParseRecords(string(b), delimiter)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse dataset: %w", err)
	}
	return res, nil
}

// FetchRecords loads the dataset from source, which is either a local path or
// an http(s) URL fetched with GET.
func FetchRecords(ctx context.Context, client *http.Client, source, delimiter string) (ParseResult, error) {
	if !isURL(source) {
		return LoadRecordsFromFile(source, delimiter)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return ParseResult{}, fmt.Errorf("build dataset request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ParseResult{}, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseResult{}, fmt.Errorf("fetch dataset: status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read dataset body: %w", err)
	}
	res, err := ParseRecords(string(b), delimiter)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse dataset: %w", err)
	}
	return res, nil
}

func isURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
