package staging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/repository"
	"github.com/garagehub/shopload/internal/storage"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Loader materializes one delivered file per entity type into the staging
// store. Staging is raw: column values stay opaque strings keyed verbatim by
// the header names, and no business validation happens here.
type Loader struct {
	repo repository.StagingRepository
}

// NewLoader creates a staging loader over the staging repository.
func NewLoader(repo repository.StagingRepository) *Loader {
	return &Loader{repo: repo}
}

// Result reports the staging outcome for one entity type.
type Result struct {
	EntityType domain.EntityType
	Staged     int
	Skipped    bool
	Reused     bool
}

// Stage materializes the plan's file for one entity type.
//
// A declared row count of zero stages nothing and reports the entity as
// skipped. When a staging area for this load and entity type already holds
// exactly the declared number of rows, it is reused untouched unless
// forceRestage is set; any other pre-existing set is replaced wholesale so a
// rerun never mixes rows from two stagings. Unreadable or malformed input
// fails with a StagingError for this entity type only.
func (l *Loader) Stage(ctx context.Context, loadID uuid.UUID, plan domain.FilePlan, files storage.FileSet, forceRestage bool) (Result, error) {
	result := Result{EntityType: plan.EntityType}

	if plan.Skip() {
		log.Printf("[STAGING] %s: declared 0 rows, skipped", plan.FileName)
		result.Skipped = true
		return result, nil
	}

	existing, err := l.repo.Count(ctx, loadID, plan.EntityType)
	if err != nil {
		return result, &domain.StagingError{EntityType: plan.EntityType, Err: err}
	}
	if existing == plan.DeclaredRows && !forceRestage {
		log.Printf("[STAGING] %s: reusing %d existing staged rows", plan.FileName, existing)
		result.Staged = existing
		result.Reused = true
		return result, nil
	}
	if existing > 0 {
		if err := l.repo.Delete(ctx, loadID, plan.EntityType); err != nil {
			return result, &domain.StagingError{EntityType: plan.EntityType, Err: err}
		}
	}

	rows, err := l.readFile(plan, files, loadID)
	if err != nil {
		return result, &domain.StagingError{EntityType: plan.EntityType, Err: err}
	}

	staged, err := l.repo.Insert(ctx, loadID, plan.EntityType, rows)
	if err != nil {
		return result, &domain.StagingError{EntityType: plan.EntityType, Err: err}
	}

	if staged != plan.DeclaredRows {
		log.Printf("[STAGING] %s: staged %d rows, manifest declared %d", plan.FileName, staged, plan.DeclaredRows)
	} else {
		log.Printf("[STAGING] %s: staged %d rows", plan.FileName, staged)
	}

	result.Staged = staged
	return result, nil
}

func (l *Loader) readFile(plan domain.FilePlan, files storage.FileSet, loadID uuid.UUID) ([]domain.StagingRow, error) {
	rc, err := files.Open(plan.FileName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", plan.FileName, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s is empty", plan.FileName)
	}

	var records [][]string
	switch ext := strings.ToLower(filepath.Ext(plan.FileName)); ext {
	case ".csv":
		records, err = parseCSV(payload)
	case ".xlsx":
		records, err = parseExcel(payload)
	default:
		err = fmt.Errorf("unsupported file format %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", plan.FileName, err)
	}

	return buildRows(loadID, plan.EntityType, records)
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	// FieldsPerRecord stays at the default so a row with an inconsistent
	// column count fails the whole file.
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// buildRows turns parsed records into staging rows. The first record is the
// header; its trimmed values become the column keys verbatim. Line numbers are
// source-file line numbers, so the first data row is line 2.
func buildRows(loadID uuid.UUID, entityType domain.EntityType, records [][]string) ([]domain.StagingRow, error) {
	if len(records) == 0 {
		return nil, errors.New("no rows found in file")
	}

	headers := make([]string, len(records[0]))
	for i, value := range records[0] {
		headers[i] = strings.TrimSpace(value)
	}
	if len(cleanRow(headers)) == 0 {
		return nil, errors.New("header row is empty")
	}

	rows := make([]domain.StagingRow, 0, len(records)-1)
	for idx, record := range records[1:] {
		if len(cleanRow(record)) == 0 {
			continue
		}
		if len(record) > len(headers) {
			return nil, fmt.Errorf("line %d has %d columns, header has %d", idx+2, len(record), len(headers))
		}

		values := make(map[string]string, len(headers))
		for col, header := range headers {
			if header == "" {
				continue
			}
			if col < len(record) {
				values[header] = strings.TrimSpace(record[col])
			} else {
				values[header] = ""
			}
		}

		rows = append(rows, domain.StagingRow{
			LoadID:     loadID,
			EntityType: entityType,
			LineNumber: idx + 2,
			Values:     values,
		})
	}

	return rows, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}
