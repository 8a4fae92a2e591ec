package audio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadCSV parses float samples separated by commas and/or whitespace, the
// format of the reference audioData.csv fixtures.
func ReadCSV(r io.Reader) ([]float32, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<30)
	scanner.Split(splitSamples)

	var samples []float32
	for scanner.Scan() {
		field := scanner.Text()
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("audio: csv sample %d: %w", len(samples), err)
		}
		samples = append(samples, float32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audio: read csv: %w", err)
	}
	return samples, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes samples with eight decimal places, each followed by a
// comma and no newlines.
func WriteCSV(w io.Writer, samples []float32) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		if _, err := bw.WriteString(strconv.FormatFloat(float64(s), 'f', 8, 32)); err != nil {
			return err
		}
		if err := bw.WriteByte(','); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func splitSamples(data []byte, atEOF bool) (int, []byte, error) {
	start := 0
	for start < len(data) && isSeparator(data[start]) {
		start++
	}
	for i := start; i < len(data); i++ {
		if isSeparator(data[i]) {
			return i + 1, data[start:i], nil
		}
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

func isSeparator(b byte) bool {
	return b == ',' || strings.IndexByte(" \t\r\n", b) >= 0
}
