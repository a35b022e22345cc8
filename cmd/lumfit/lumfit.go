// lumfit fits a gamma curve to previously collected photometer samples
// and writes the 256-entry inverse lookup table, without touching the
// instrument. Input is a CSV of gun values and luminance readings:
//
//	gun,lum            (grayscale)
//	gun,red,green,blue (RGB)
//
// An empty luminance cell marks a step where no valid reading was taken.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/banshee-data/luminance.report/internal/calplot"
	"github.com/banshee-data/luminance.report/internal/gamma"
)

func main() {
	var inPath string
	var outPath string
	var method int
	var plotDir string

	flag.StringVar(&inPath, "in", "", "samples CSV file (required)")
	flag.StringVar(&outPath, "out", "table.csv", "output lookup table CSV")
	flag.IntVar(&method, "method", int(gamma.DefaultMethod), "normalization method (1=range, 2=max, 3=max+offset)")
	flag.StringVar(&plotDir, "plot", "", "also write fit and table plots to this directory")
	flag.Parse()

	if inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	gun, lum, err := readSamples(inPath)
	if err != nil {
		log.Fatalf("read samples: %v", err)
	}

	res, err := gamma.Calibrate(gun, lum, gamma.Method(method))
	if err != nil {
		log.Fatalf("fit failed: %v", err)
	}

	for c, g := range res.Gamma {
		if res.LowAsymptote != nil {
			fmt.Printf("channel %d: gamma=%.4f low_asymptote=%.5f\n", c, g, res.LowAsymptote[c])
		} else {
			fmt.Printf("channel %d: gamma=%.4f\n", c, g)
		}
	}

	if err := writeTable(outPath, res); err != nil {
		log.Fatalf("write table: %v", err)
	}
	fmt.Printf("wrote %s\n", outPath)

	if plotDir != "" {
		files, err := calplot.Generate(plotDir, uuid.NewString(), gun, lum, res)
		if err != nil {
			log.Fatalf("write plots: %v", err)
		}
		for _, f := range files {
			fmt.Printf("wrote %s\n", f)
		}
	}
}

// readSamples parses the input CSV. A header row is detected by a
// non-numeric first field and skipped.
func readSamples(path string) ([]float64, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var gun []float64
	var lum [][]float64
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++

		if len(record) < 2 {
			return nil, nil, fmt.Errorf("line %d: need a gun value and at least one luminance column", line)
		}

		g, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, nil, fmt.Errorf("line %d: bad gun value %q", line, record[0])
		}

		row := make([]float64, len(record)-1)
		for i, cell := range record[1:] {
			if cell == "" {
				row[i] = gamma.Missing
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: bad luminance value %q", line, cell)
			}
			row[i] = v
		}

		gun = append(gun, g)
		lum = append(lum, row)
	}

	return gun, lum, nil
}

func writeTable(path string, res *gamma.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"level"}
	if len(res.Gamma) == 3 {
		header = append(header, "red", "green", "blue")
	} else {
		header = append(header, "luminance")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, row := range res.Table {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.Itoa(i))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
