package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LoadTicksCSV reads a raw trade-print CSV with headers timestamp|time,
// qty|quantity|size, price. Timestamps accept RFC3339 or unix
// milliseconds/seconds; rows missing price or timestamp are skipped.
// Unknown columns are ignored and headers are case-insensitive.
func LoadTicksCSV(path string) ([]Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Tick
	var headers []string
	rowIdx := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := map[string]string{}
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		tsField := first(row, "timestamp", "time", "ts")
		priceField := first(row, "price", "px")
		qtyField := first(row, "qty", "quantity", "size")
		if tsField == "" || priceField == "" {
			continue
		}
		ts, err := parseTickTime(tsField)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(priceField, 64)
		if err != nil {
			continue
		}
		qty, _ := strconv.ParseFloat(qtyField, 64)
		out = append(out, Tick{TimestampMs: ts, Qty: qty, Price: price})
		rowIdx++
	}

	sortTicks(out)
	return out, nil
}

// parseTickTime accepts RFC3339, unix milliseconds, or unix seconds.
func parseTickTime(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad time: %s", s)
	}
	if n > 1e11 {
		return n, nil
	}
	return n * 1000, nil
}

func sortTicks(ticks []Tick) {
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].TimestampMs < ticks[j].TimestampMs })
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
