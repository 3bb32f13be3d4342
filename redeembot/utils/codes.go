package utils

import (
	"bufio"
	"io"
	"strings"
)

// ParseCodeList reads a newline-delimited code list, one code per line.
// Blank lines and surrounding whitespace are dropped; duplicate handling is
// left to the store.
func ParseCodeList(r io.Reader) ([]string, error) {
	var codes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}
