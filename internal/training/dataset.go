// Package training builds classifier artifacts from labeled CSV exports.
package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

// Dataset holds labeled transactions loaded from a CSV export.
type Dataset struct {
	Records []*domain.Transaction
	Labels  []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Records) }

// FraudRate returns the fraction of positive labels.
func (d *Dataset) FraudRate() float64 {
	if len(d.Labels) == 0 {
		return 0
	}
	var n int
	for _, l := range d.Labels {
		n += l
	}
	return float64(n) / float64(len(d.Labels))
}

// LabelColumn is the CSV column holding the fraud label.
const LabelColumn = "isFraud"

// LoadCSV reads a labeled transaction export. Columns are matched by
// header name so column order does not matter. Empty history cells
// load as nil and are imputed at fit time.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col[LabelColumn]; !ok {
		return nil, fmt.Errorf("%w: dataset missing %s column", domain.ErrInvalidInput, LabelColumn)
	}

	ds := &Dataset{}
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++

		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		tx := &domain.Transaction{
			ID:         cell("Transaction_ID"),
			Currency:   cell("Transaction_Currency"),
			Date:       cell("Transaction_Date"),
			Time:       cell("Transaction_Time"),
			Location:   cell("Transaction_Location"),
			CardType:   cell("Card_Type"),
			Status:     cell("Transaction_Status"),
			AuthMethod: cell("Authentication_Method"),
			Category:   cell("Transaction_Category"),
		}

		if raw := cell("Transaction_Amount"); raw != "" {
			amount, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse Transaction_Amount: %w", line, err)
			}
			tx.Amount = amount
		}

		for _, h := range []struct {
			name string
			dst  **float64
		}{
			{"Previous_Transaction_Count", &tx.PrevTxCount},
			{"Distance_Between_Transactions_km", &tx.DistanceKm},
			{"Time_Since_Last_Transaction_min", &tx.MinutesSinceLast},
			{"Transaction_Velocity", &tx.Velocity},
		} {
			raw := cell(h.name)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %s: %w", line, h.name, err)
			}
			*h.dst = &v
		}

		label, err := parseLabel(cell(LabelColumn))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		ds.Records = append(ds.Records, tx)
		ds.Labels = append(ds.Labels, label)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: dataset is empty", domain.ErrInvalidInput)
	}

	return ds, nil
}

func parseLabel(raw string) (int, error) {
	switch strings.ToLower(raw) {
	case "1", "true":
		return 1, nil
	case "0", "false", "":
		return 0, nil
	}
	// Exports sometimes carry the label as a float
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s value %q: %w", LabelColumn, raw, err)
	}
	if v >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// Split divides a dataset into train, validation, and test partitions
// after a seeded shuffle. Ratios must sum to at most 1; the test
// partition takes the remainder.
func (d *Dataset) Split(trainRatio, valRatio float64, seed int64) (train, val, test *Dataset, err error) {
	if trainRatio <= 0 || valRatio < 0 || trainRatio+valRatio >= 1 {
		return nil, nil, nil, fmt.Errorf("%w: invalid split ratios %.2f/%.2f", domain.ErrInvalidInput, trainRatio, valRatio)
	}

	n := d.Len()
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	nTrain := int(float64(n) * trainRatio)
	nVal := int(float64(n) * valRatio)
	if nTrain == 0 || nTrain+nVal >= n {
		return nil, nil, nil, fmt.Errorf("%w: dataset too small to split (%d rows)", domain.ErrInvalidInput, n)
	}

	pick := func(idx []int) *Dataset {
		out := &Dataset{
			Records: make([]*domain.Transaction, len(idx)),
			Labels:  make([]int, len(idx)),
		}
		for i, j := range idx {
			out.Records[i] = d.Records[j]
			out.Labels[i] = d.Labels[j]
		}
		return out
	}

	train = pick(perm[:nTrain])
	val = pick(perm[nTrain : nTrain+nVal])
	test = pick(perm[nTrain+nVal:])
	return train, val, test, nil
}
