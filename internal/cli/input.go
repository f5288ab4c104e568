package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// getSecret prompts on w and reads one value from the terminal without echo.
// The caller should wipe the result.
func getSecret(w io.Writer, name string) ([]byte, error) {
	if _, err := fmt.Fprintf(w, "%s (hidden): ", name); err != nil {
		return nil, err
	}
	v, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// readCredentialFields reads "name=value" lines until an empty line. A field
// given as "name=" is then asked for with getSecret so tokens and passwords
// never appear on screen.
func readCredentialFields(reader *bufio.Reader, w io.Writer) (map[string]string, error) {
	fmt.Fprintln(w, "Enter credential fields as name=value, one per line (empty line to finish).")
	fmt.Fprintln(w, "Leave the value empty to type it hidden, e.g. accessToken=")

	fields := make(map[string]string)
	var hidden []string
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			break
		}

		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed field %q, want name=value", line)
		}
		if value == "" {
			hidden = append(hidden, name)
			continue
		}
		fields[name] = value

		if err != nil {
			break
		}
	}

	for _, name := range hidden {
		v, err := getSecret(w, name)
		if err != nil {
			return nil, err
		}
		fields[name] = string(v)
		common.WipeByteArray(v)
	}

	if len(fields) == 0 {
		return nil, errors.New("no credential fields entered")
	}
	return fields, nil
}
