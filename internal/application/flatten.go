package application

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// FlattenDataset turns the dataset's "data" array into a table. Nested
// objects become dotted column paths; arrays and scalars are leaf values.
// Columns appear in the order they are first seen across rows.
func FlattenDataset(ds *model.Dataset) (*model.Table, error) {
	raw := ds.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(ds.Value); err != nil {
			return nil, fmt.Errorf("flatten %s: %w", ds.Key, err)
		}
	}

	data, err := dataArray(raw)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", ds.Key, err)
	}
	return FlattenJSON(data)
}

// FlattenJSON flattens a JSON array of objects into a table.
func FlattenJSON(array []byte) (*model.Table, error) {
	dec := newDecoder(array)
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	var (
		columns []string
		seen    = map[string]int{}
		rows    []map[string]any
	)

	for i := 0; dec.More(); i++ {
		var rowRaw json.RawMessage
		if err := dec.Decode(&rowRaw); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if firstByte(rowRaw) != '{' {
			return nil, fmt.Errorf("row %d: want JSON object, got %s", i, truncate(rowRaw))
		}

		cells := map[string]any{}
		err := flattenObject(rowRaw, "", func(col string, v any) {
			if _, ok := seen[col]; !ok {
				seen[col] = len(columns)
				columns = append(columns, col)
			}
			cells[col] = v
		})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, cells)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}

	table := &model.Table{Columns: columns, Rows: make([][]any, len(rows))}
	if table.Columns == nil {
		table.Columns = []string{}
	}
	for i, cells := range rows {
		row := make([]any, len(columns))
		for col, v := range cells {
			row[seen[col]] = v
		}
		table.Rows[i] = row
	}
	return table, nil
}

// flattenObject walks one JSON object in document order, emitting a leaf for
// every non-object value.
func flattenObject(raw []byte, prefix string, emit func(col string, v any)) error {
	dec := newDecoder(raw)
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", prefix+key, err)
		}

		if firstByte(value) == '{' {
			if err := flattenObject(value, prefix+key+".", emit); err != nil {
				return err
			}
			continue
		}

		var leaf any
		if err := newDecoder(value).Decode(&leaf); err != nil {
			return fmt.Errorf("field %q: %w", prefix+key, err)
		}
		emit(prefix+key, leaf)
	}
	return nil
}

// dataArray extracts the raw "data" member of a top-level JSON object.
func dataArray(raw []byte) ([]byte, error) {
	dec := newDecoder(raw)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if tok == "data" {
			if firstByte(value) != '[' {
				return nil, fmt.Errorf(`"data" is not an array: %s`, truncate(value))
			}
			return value, nil
		}
	}
	return nil, &model.MissingFieldError{Field: "data", Context: "export body"}
}

func newDecoder(b []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("want %q, got %v", want.String(), tok)
	}
	return nil
}

func firstByte(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func truncate(b []byte) string {
	const limit = 40
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
