package answerkey

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	numberHeaders = []string{"number", "no", "so", "số", "câu", "cau", "question"}
	answerHeaders = []string{"answer", "key", "dap_an", "đáp án", "dapan", "đáp_án"}
)

func decodeXLSX(doc []byte) ([]entry, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: open excel: %v", ErrMalformedKeyDocument, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedKeyDocument)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrMalformedKeyDocument, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	numCol, okNum := findColumn(header, numberHeaders)
	ansCol, okAns := findColumn(header, answerHeaders)
	if !okNum || !okAns {
		return nil, fmt.Errorf("%w: missing number/answer columns", ErrMalformedKeyDocument)
	}

	out := make([]entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(idx int) string {
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if get(numCol) == "" && get(ansCol) == "" {
			continue
		}
		out = append(out, entry{numeral: get(numCol), letter: get(ansCol)})
	}
	return out, nil
}

func findColumn(header map[string]int, names []string) (int, bool) {
	for _, n := range names {
		if idx, ok := header[n]; ok {
			return idx, true
		}
	}
	return 0, false
}

// ExportXLSX writes the flat form as a two-column sheet ordered by number.
func ExportXLSX(flat map[string]string) ([]byte, error) {
	numbers := make([]int, 0, len(flat))
	for k := range flat {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, h := range []string{"number", "answer"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, n := range numbers {
		row := i + 2
		numCell, _ := excelize.CoordinatesToCellName(1, row)
		ansCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, numCell, n)
		_ = f.SetCellValue(sheet, ansCell, flat[strconv.Itoa(n)])
	}
	_ = f.SetColWidth(sheet, "A", "B", 12)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
