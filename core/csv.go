package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

func parseCSV(body []byte) ([][]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return [][]string{}, nil
	}
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, WrapProtocolError(err, "core: malformed csv response", nil)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

func csvTable(rows [][]string) ([]map[string]string, error) {
	table := []map[string]string{}
	if len(rows) == 0 {
		return table, nil
	}
	header := rows[0]
	for index, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, NewProtocolError(
				fmt.Sprintf("core: csv row %d has %d fields, header has %d", index+2, len(row), len(header)),
				nil,
			)
		}
		record := make(map[string]string, len(header))
		for column, name := range header {
			record[name] = row[column]
		}
		table = append(table, record)
	}
	return table, nil
}
