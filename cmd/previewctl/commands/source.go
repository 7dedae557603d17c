package commands

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

// readSource reads path, or stdin when path is "-", and rejects content
// that is not text.
func readSource(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	if err := checkText(data); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return string(data), nil
}

// checkText accepts UTF-8 text. Empty input passes; the pipeline reports it.
func checkText(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			if !utf8.Valid(data) {
				return fmt.Errorf("source is %s; only UTF-8 is supported", mtype)
			}
			return nil
		}
	}
	return fmt.Errorf("not a text file (detected %s)", mtype)
}
