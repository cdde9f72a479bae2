package navigation

import (
	"bufio"
	"os"
	"strings"
)

// LoadBlocklist reads one blocked domain per line. Blank lines and lines
// starting with # are skipped. A missing path yields an empty list.
func LoadBlocklist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var domains []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, sc.Err()
}
