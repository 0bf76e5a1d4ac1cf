package leak

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// LabelColumn is the column holding the known outcome in training data.
const LabelColumn = "leak"

// Features lists the reading columns in model order.
var Features = []string{
	"water_supplied_litres",
	"water_consumed_litres",
	"flowrate_lps",
	"pressure_psi",
}

// ParseCSV reads training samples from CSV data with a header row. Extra
// columns are ignored.
func ParseCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty training data")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	required := append(append([]string(nil), Features...), LabelColumn)
	cols := make([]int, len(required))
	for i, name := range required {
		col, exists := index[name]
		if !exists {
			return nil, fmt.Errorf("missing column in new data: %s", name)
		}
		cols[i] = col
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		values := make([]float64, len(required))
		for i, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, required[i], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: column %s must be a finite number, got %v", line, required[i], v)
			}
			values[i] = v
		}

		leak := values[len(values)-1]
		if leak != 0 && leak != 1 {
			return nil, fmt.Errorf("line %d: column %s must be 0 or 1, got %v", line, LabelColumn, leak)
		}

		samples = append(samples, Sample{
			Reading: Reading{
				WaterSupplied: values[0],
				WaterConsumed: values[1],
				FlowRate:      values[2],
				Pressure:      values[3],
			},
			Leak: int(leak),
		})
	}

	return samples, nil
}
