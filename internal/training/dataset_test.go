package training

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

const header = "Transaction_ID,Transaction_Amount,Transaction_Currency,Transaction_Date,Transaction_Time,Transaction_Location,Card_Type,Transaction_Status,Authentication_Method,Transaction_Category,Previous_Transaction_Count,Distance_Between_Transactions_km,Time_Since_Last_Transaction_min,Transaction_Velocity,isFraud"

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t,
		header,
		"tx-001,1500,INR,2025-06-11,14:30:00,Mumbai,Visa,Completed,PIN,Groceries,5,4,60,2,0",
		"tx-002,80000000,INR,2025-06-11,23:45:00,Delhi,Mastercard,Completed,Failed,Electronics,1,600,0.5,12,1",
		"tx-003,900,INR,2025-06-12,09:00:00,Mumbai,Visa,Completed,Biometric,Fuel,,,,,false",
	)

	ds, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", ds.Len())
	}

	first := ds.Records[0]
	if first.ID != "tx-001" || first.Amount != 1500 || first.Location != "Mumbai" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Velocity == nil || *first.Velocity != 2 {
		t.Errorf("expected velocity 2, got %v", first.Velocity)
	}

	if ds.Labels[0] != 0 || ds.Labels[1] != 1 || ds.Labels[2] != 0 {
		t.Errorf("unexpected labels: %v", ds.Labels)
	}

	// Empty history cells stay nil for fit-time imputation
	third := ds.Records[2]
	if third.PrevTxCount != nil || third.DistanceKm != nil || third.MinutesSinceLast != nil || third.Velocity != nil {
		t.Errorf("expected nil history fields, got %+v", third)
	}

	if got := ds.FraudRate(); got < 0.33 || got > 0.34 {
		t.Errorf("expected fraud rate 1/3, got %v", got)
	}
}

func TestLoadCSVColumnOrderIndependent(t *testing.T) {
	path := writeCSV(t,
		"isFraud,Transaction_Amount,Transaction_ID",
		"1,2500,tx-009",
	)

	ds, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Records[0].ID != "tx-009" || ds.Records[0].Amount != 2500 || ds.Labels[0] != 1 {
		t.Errorf("unexpected row: %+v label %d", ds.Records[0], ds.Labels[0])
	}
}

func TestLoadCSVFloatLabel(t *testing.T) {
	path := writeCSV(t,
		"Transaction_ID,isFraud",
		"tx-001,0.7",
		"tx-002,0.2",
	)

	ds, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Labels[0] != 1 || ds.Labels[1] != 0 {
		t.Errorf("expected labels [1 0], got %v", ds.Labels)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		if _, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("MissingLabelColumn", func(t *testing.T) {
		path := writeCSV(t, "Transaction_ID,Transaction_Amount", "tx-001,100")
		_, err := LoadCSV(path)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("BadAmount", func(t *testing.T) {
		path := writeCSV(t, "Transaction_ID,Transaction_Amount,isFraud", "tx-001,abc,0")
		_, err := LoadCSV(path)
		if err == nil || !strings.Contains(err.Error(), "row 2") {
			t.Errorf("expected row-numbered parse error, got %v", err)
		}
	})

	t.Run("BadLabel", func(t *testing.T) {
		path := writeCSV(t, "Transaction_ID,isFraud", "tx-001,maybe")
		_, err := LoadCSV(path)
		if err == nil || !strings.Contains(err.Error(), "isFraud") {
			t.Errorf("expected label parse error, got %v", err)
		}
	})

	t.Run("EmptyDataset", func(t *testing.T) {
		path := writeCSV(t, header)
		_, err := LoadCSV(path)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func syntheticDataset(n int) *Dataset {
	ds := &Dataset{
		Records: make([]*domain.Transaction, n),
		Labels:  make([]int, n),
	}
	for i := 0; i < n; i++ {
		tx := &domain.Transaction{
			ID:       "tx-" + strconv.Itoa(i),
			Amount:   float64(500 + i*10),
			Currency: "INR",
			Date:     "2025-06-11",
			Time:     "14:30:00",
			Location: "Mumbai",
		}
		label := 0
		if i%5 < 2 {
			tx.Amount = float64(80_000_000 + i*1000)
			tx.AuthMethod = "Failed"
			label = 1
		}
		ds.Records[i] = tx
		ds.Labels[i] = label
	}
	return ds
}

func TestSplit(t *testing.T) {
	ds := syntheticDataset(100)

	train, val, test, err := ds.Split(0.7, 0.1, 42)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if train.Len() != 70 || val.Len() != 10 || test.Len() != 20 {
		t.Errorf("expected 70/10/20 split, got %d/%d/%d", train.Len(), val.Len(), test.Len())
	}

	// Every row lands in exactly one partition
	seen := make(map[string]int)
	for _, part := range []*Dataset{train, val, test} {
		for _, tx := range part.Records {
			seen[tx.ID]++
		}
	}
	if len(seen) != 100 {
		t.Errorf("expected 100 distinct rows across partitions, got %d", len(seen))
	}
	for id, c := range seen {
		if c != 1 {
			t.Errorf("row %s appears %d times", id, c)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	ds := syntheticDataset(50)

	a1, _, _, err := ds.Split(0.7, 0.1, 7)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	a2, _, _, err := ds.Split(0.7, 0.1, 7)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for i := range a1.Records {
		if a1.Records[i] != a2.Records[i] || a1.Labels[i] != a2.Labels[i] {
			t.Fatal("same seed must produce the same shuffle")
		}
	}
}

func TestSplitValidation(t *testing.T) {
	ds := syntheticDataset(20)

	cases := []struct {
		name       string
		train, val float64
	}{
		{"ZeroTrain", 0, 0.1},
		{"NegativeVal", 0.7, -0.1},
		{"RatiosExceedOne", 0.9, 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, _, err := ds.Split(tc.train, tc.val, 1); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	tiny := syntheticDataset(2)
	if _, _, _, err := tiny.Split(0.7, 0.1, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for tiny dataset, got %v", err)
	}
}
