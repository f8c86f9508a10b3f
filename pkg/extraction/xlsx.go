package extraction

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExtractXLSX opens the workbook in read-only streaming mode and applies the
// same amount-keyword adjacency rule as the text extractor over every
// sheet's rows (§4.4).
func ExtractXLSX(raw []byte, sourceName string) SourceExtraction {
	result := SourceExtraction{
		SourceType:       "xlsx",
		SourceName:       sourceName,
		ExtractionMethod: "native_xlsx",
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		result.Error = "xlsx_open_failed: " + err.Error()
		return result
	}
	defer f.Close()

	var plain strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.Rows(sheet)
		if err != nil {
			continue
		}
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				continue
			}
			plain.WriteString(strings.Join(cols, " "))
			plain.WriteByte('\n')
		}
		_ = rows.Close()
	}

	parsed := ExtractText(plain.String())
	result.Gesamtforderung = parsed.Gesamtforderung
	if result.Gesamtforderung != nil {
		result.Gesamtforderung.Source = "xlsx"
		result.Gesamtforderung.Confidence = ConfidenceHigh
	}
	result.ClientName = parsed.ClientName
	result.ClientNameConfidence = parsed.ClientNameConfidence
	result.CreditorName = parsed.CreditorName
	result.CreditorNameConfidence = parsed.CreditorNameConfidence
	return result
}
