package articlestore

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	fieldSeparator = "|"
	fieldCount     = 5
)

// EncodeLine renders r as one database line, without the trailing newline:
// digest|title|authors|year|bodyFileName. Fields are not escaped; callers
// must reject separators beforehand (see validateField).
func EncodeLine(r *Record) string {
	return strings.Join([]string{
		r.Digest,
		r.Title,
		r.Authors,
		strconv.Itoa(r.Year),
		r.BodyFileName,
	}, fieldSeparator)
}

// DecodeLine parses one database line. The returned error is a
// *MalformedLineError with Line left at zero.
func DecodeLine(line string) (*Record, error) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) != fieldCount {
		return nil, &MalformedLineError{
			Text:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", fieldCount, len(parts)),
		}
	}
	year, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, &MalformedLineError{
			Text:   line,
			Reason: fmt.Sprintf("invalid year %q", parts[3]),
		}
	}
	return &Record{
		Digest:       parts[0],
		Title:        parts[1],
		Authors:      parts[2],
		Year:         year,
		BodyFileName: parts[4],
	}, nil
}

// WriteRecords writes one line per record to w.
func WriteRecords(w io.Writer, records []*Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(EncodeLine(r)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadRecords parses every line of r, whatever its length. Blank lines are
// ignored. Lines that fail to parse are skipped and returned alongside the
// good records; only a read error from r aborts.
func ReadRecords(r io.Reader) ([]*Record, []MalformedLineError, error) {
	var (
		records []*Record
		skipped []MalformedLineError
	)
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return records, skipped, err
		}
		if raw == "" && err == io.EOF {
			break
		}
		lineNo++
		if line := strings.TrimSpace(raw); line != "" {
			rec, decodeErr := DecodeLine(line)
			if decodeErr != nil {
				mle := decodeErr.(*MalformedLineError)
				mle.Line = lineNo
				skipped = append(skipped, *mle)
			} else {
				records = append(records, rec)
			}
		}
		if err == io.EOF {
			break
		}
	}
	return records, skipped, nil
}

// validateField rejects values that would corrupt the line format.
func validateField(name, value string) error {
	if strings.ContainsAny(value, fieldSeparator+"\n\r") {
		return fmt.Errorf("%w: %s must not contain '|' or line breaks", ErrInvalidField, name)
	}
	return nil
}
