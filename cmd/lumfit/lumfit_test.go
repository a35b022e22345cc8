package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/luminance.report/internal/gamma"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestReadSamplesGrayscale(t *testing.T) {
	path := writeTempCSV(t, "gun,lum\n0,0.2\n128,30.5\n255,120.0\n")

	gun, lum, err := readSamples(path)
	if err != nil {
		t.Fatalf("readSamples: %v", err)
	}

	if len(gun) != 3 {
		t.Fatalf("got %d rows, want 3", len(gun))
	}
	if gun[1] != 128 {
		t.Errorf("gun[1] = %f, want 128", gun[1])
	}
	if lum[2][0] != 120.0 {
		t.Errorf("lum[2][0] = %f, want 120", lum[2][0])
	}
}

func TestReadSamplesNoHeader(t *testing.T) {
	path := writeTempCSV(t, "0,0.2\n255,120.0\n")

	gun, _, err := readSamples(path)
	if err != nil {
		t.Fatalf("readSamples: %v", err)
	}
	if len(gun) != 2 {
		t.Fatalf("got %d rows, want 2", len(gun))
	}
}

func TestReadSamplesMissingCell(t *testing.T) {
	path := writeTempCSV(t, "gun,red,green,blue\n0,0.2,0.3,0.1\n128,,30.0,28.5\n255,118.2,121.0,115.3\n")

	_, lum, err := readSamples(path)
	if err != nil {
		t.Fatalf("readSamples: %v", err)
	}

	if !gamma.IsMissing(lum[1][0]) {
		t.Errorf("empty cell should parse as missing, got %f", lum[1][0])
	}
	if lum[1][1] != 30.0 {
		t.Errorf("lum[1][1] = %f, want 30", lum[1][1])
	}
}

func TestReadSamplesBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad gun value mid-file", "0,0.2\nduff,30.5\n"},
		{"bad luminance value", "0,0.2\n128,duff\n"},
		{"too few columns", "0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempCSV(t, tt.content)
			if _, _, err := readSamples(path); err == nil {
				t.Error("expected parse error, got nil")
			}
		})
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	gun := []float64{0, 64, 128, 191, 255}
	lum := make([][]float64, len(gun))
	for i, g := range gun {
		lum[i] = []float64{math.Pow(g/255, 2.2)}
	}

	res, err := gamma.Calibrate(gun, lum, gamma.MaxNormalize)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "table.csv")
	if err := writeTable(path, res); err != nil {
		t.Fatalf("writeTable: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	if len(lines) != gamma.TableSize+1 {
		t.Fatalf("got %d lines, want %d", len(lines), gamma.TableSize+1)
	}
	if lines[0] != "level,luminance" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,0.000000" {
		t.Errorf("first row = %q", lines[1])
	}
	if lines[gamma.TableSize] != "255,1.000000" {
		t.Errorf("last row = %q", lines[gamma.TableSize])
	}
}
