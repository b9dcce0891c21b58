package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

const sampleCSV = `Property_ID,City,Location,BHK,Size_sqft,Bathrooms,Floor,Total_Floors,Furnishing,Property_Age,Parking,Rent
P001,Mumbai,Andheri,2,850,2,3,10,Furnished,5,1,45000
P002,Pune, Baner ,1,600.5,1,1,4,Unfurnished,10,0,18000
P003,Delhi,Saket,two,900,2,1,4,Unfurnished,10,0,21000
P004,Delhi,Dwarka,3.0,1100,2,4,8,Semi-Furnished,12,1,27000
P005,Delhi,Rohini,2
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCSVReaderParsesAndSkips(t *testing.T) {
	path := writeTemp(t, "rent.csv", sampleCSV)
	records, err := NewCSVReader(path, utils.NewNopLogger()).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3", len(records))
	}

	r := records[1]
	if r.PropertyID != "P002" || r.Location != "Baner" || r.SizeSqft != 600.5 || r.Rent != 18000 {
		t.Errorf("record 2: got %+v", r)
	}
	if records[2].BHK != 3 {
		t.Errorf("integral float BHK: got %d, want 3", records[2].BHK)
	}
}

func TestCSVReaderHeaderOrderIndependent(t *testing.T) {
	content := "Rent,Parking,Property_Age,Furnishing,Total_Floors,Floor,Bathrooms,Size_sqft,BHK,Location,City,Property_ID\n" +
		"30000,1,4,Furnished,6,2,2,800,2,Koramangala,Bangalore,B1\n"
	path := writeTemp(t, "reordered.csv", content)
	records, err := NewCSVReader(path, utils.NewNopLogger()).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 || records[0].City != "Bangalore" || records[0].Rent != 30000 {
		t.Errorf("got %+v", records)
	}
}

func TestCSVReaderMissingColumn(t *testing.T) {
	path := writeTemp(t, "bad.csv", "Property_ID,City\nP1,Mumbai\n")
	_, err := NewCSVReader(path, utils.NewNopLogger()).ReadAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing column") {
		t.Errorf("ReadAll: got %v, want missing column error", err)
	}
}

func TestCSVWriterHoldout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "holdout.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.WriteHoldout([]models.HoldoutPrediction{{PropertyID: "P1", Actual: 100, Predicted: 90.5}}); err != nil {
		t.Fatalf("WriteHoldout: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, _ := os.ReadFile(path)
	rows, err := csv.NewReader(bytes.NewReader(f)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	want := []string{"P1", "100", "90.50", "9.50"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("cell %d: got %q, want %q", i, rows[1][i], want[i])
		}
	}
}

func TestFileStoreReplacesWholeFile(t *testing.T) {
	ctx := context.Background()
	loc := filepath.Join(t.TempDir(), "models", "model.bin")
	s := NewFileStore()

	if err := s.Write(ctx, loc, []byte("first version, longer")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, loc, []byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx, loc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read: got %q, want %q", got, "second")
	}

	entries, _ := os.ReadDir(filepath.Dir(loc))
	if len(entries) != 1 {
		t.Errorf("directory entries: got %d, want 1 (no temp files left)", len(entries))
	}
}

func TestRouterMissingFileNotRetried(t *testing.T) {
	r := NewRouter(utils.NewNopLogger(), 5)
	_, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "absent.bin"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read: got %v, want fs.ErrNotExist", err)
	}
}

func TestParseGCSLocation(t *testing.T) {
	tests := []struct {
		loc            string
		bucket, object string
		ok             bool
	}{
		{"gs://models/rent/model.bin", "models", "rent/model.bin", true},
		{"gs://models", "", "", false},
		{"gs:///model.bin", "", "", false},
		{"/tmp/model.bin", "", "", false},
	}
	for _, tt := range tests {
		b, o, err := parseGCSLocation(tt.loc)
		if (err == nil) != tt.ok || b != tt.bucket || o != tt.object {
			t.Errorf("parseGCSLocation(%q) = %q, %q, %v", tt.loc, b, o, err)
		}
	}
}
