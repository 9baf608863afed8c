package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/email"
)

// Column names understood by the import flavours.
const (
	ColumnFirstName   = "first_name"
	ColumnLastName    = "last_name"
	ColumnAffiliation = "affiliation"
	ColumnPosition    = "position"
	ColumnPhone       = "phone"
	ColumnEmail       = "email"
)

// Column orders of the fixed-layout imports.
var (
	RegistrationColumns = []string{ColumnFirstName, ColumnLastName, ColumnAffiliation, ColumnPosition, ColumnPhone, ColumnEmail}
	InvitationColumns   = []string{ColumnFirstName, ColumnLastName, ColumnAffiliation, ColumnEmail}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseRecords reads headerless CSV rows laid out in the given column order.
// Values are trimmed; empty values are left out of the record except the
// email, which must be present and valid and is lower-cased. Blank lines are
// skipped and row numbers count non-blank rows from 1.
func ParseRecords(r io.Reader, columns []string) ([]domain.ImportRecord, error) {
	emailAt := -1
	for i, c := range columns {
		if c == ColumnEmail {
			emailAt = i
		}
	}
	if emailAt < 0 {
		return nil, fmt.Errorf("%w: column list has no %s column", ErrImport, ColumnEmail)
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var out []domain.ImportRecord
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: Row %d: %v", ErrImport, row, err)
		}
		if len(fields) != len(columns) {
			return nil, &MalformedRowError{Row: row, Expected: len(columns), Got: len(fields)}
		}

		rec := make(domain.ImportRecord, len(columns))
		for i, c := range columns {
			if v := strings.TrimSpace(fields[i]); v != "" {
				rec[c] = v
			}
		}
		addr := email.Normalize(fields[emailAt])
		switch {
		case addr == "":
			return nil, &MissingEmailError{Row: row}
		case !email.IsValid(addr):
			return nil, &InvalidEmailError{Row: row, Email: addr}
		}
		rec[ColumnEmail] = addr
		out = append(out, rec)
	}
	return out, nil
}

// requireColumns checks that every record has a value for each column.
func requireColumns(records []domain.ImportRecord, columns ...string) error {
	for i, rec := range records {
		for _, c := range columns {
			if rec.Get(c) == "" {
				return &MissingFieldError{Row: i + 1, Column: c}
			}
		}
	}
	return nil
}
