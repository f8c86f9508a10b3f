package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
)

// docxBody mirrors the subset of word/document.xml this extractor walks:
// paragraphs and table cells, each containing one or more text runs.
type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
	Tables     []docxTable     `xml:"body>tbl"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r>t"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxRun struct {
	Text string `xml:",chardata"`
}

// ExtractDOCX opens the OOXML zip container and walks word/document.xml's
// paragraphs and tables, applying the same amount-keyword adjacency rule as
// the text extractor (§4.4). No DOCX-reader library is available in the
// retrieval pack — archive/zip + encoding/xml is the justified stdlib path
// (see DESIGN.md).
func ExtractDOCX(raw []byte, sourceName string) SourceExtraction {
	result := SourceExtraction{
		SourceType:       "docx",
		SourceName:       sourceName,
		ExtractionMethod: "native_docx",
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		result.Error = "docx_open_failed: " + err.Error()
		return result
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			result.Error = "docx_read_failed: " + err.Error()
			return result
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			result.Error = "docx_read_failed: " + err.Error()
			return result
		}
		break
	}
	if docXML == nil {
		result.Error = "docx_missing_document_xml"
		return result
	}

	var body docxBody
	if err := xml.Unmarshal(docXML, &body); err != nil {
		result.Error = "docx_parse_failed: " + err.Error()
		return result
	}

	var plain bytes.Buffer
	for _, p := range body.Paragraphs {
		for _, r := range p.Runs {
			plain.WriteString(r.Text)
		}
		plain.WriteByte('\n')
	}
	for _, t := range body.Tables {
		for _, row := range t.Rows {
			for _, cell := range row.Cells {
				for _, p := range cell.Paragraphs {
					for _, r := range p.Runs {
						plain.WriteString(r.Text)
						plain.WriteByte(' ')
					}
				}
			}
			plain.WriteByte('\n')
		}
	}

	parsed := ExtractText(plain.String())
	result.Gesamtforderung = parsed.Gesamtforderung
	if result.Gesamtforderung != nil {
		result.Gesamtforderung.Source = "docx"
		result.Gesamtforderung.Confidence = ConfidenceHigh
	}
	result.ClientName = parsed.ClientName
	result.ClientNameConfidence = parsed.ClientNameConfidence
	result.CreditorName = parsed.CreditorName
	result.CreditorNameConfidence = parsed.CreditorNameConfidence
	return result
}
