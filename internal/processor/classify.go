// Package processor adapts PDF and image libraries to the capability
// interfaces declared in the domain package.
package processor

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"pdf-tools-bot/internal/domain"

	"github.com/gen2brain/go-fitz"
)

// classifyPDFError tags a library error with the matching domain sentinel so
// handlers can tell bad input apart from a library fault.
func classifyPDFError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrEncryptedDocument) || errors.Is(err, domain.ErrCorruptDocument) {
		return err
	}
	if errors.Is(err, fitz.ErrNeedsPassword) {
		return fmt.Errorf("%w: %v", domain.ErrEncryptedDocument, err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return fmt.Errorf("%w: %v", domain.ErrEncryptedDocument, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
}
