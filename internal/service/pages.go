package service

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "pdf-tools-bot/pkg/errors"
)

// ParsePageSpec expands a page specification such as "1-3,5,7-end" into
// 1-based page numbers. Order and duplicates are preserved.
func ParsePageSpec(spec string, total int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, apperrors.NewValidationError("No pages given", pageSpecHint(total))
	}

	var pages []int
	for _, raw := range strings.Split(spec, ",") {
		token := strings.Join(strings.Fields(raw), "")
		if token == "" {
			return nil, apperrors.NewValidationError("Empty page range in "+strconv.Quote(spec), pageSpecHint(total))
		}

		start, end, err := parseRange(token, total)
		if err != nil {
			return nil, err
		}
		if start < 1 || start > total {
			return nil, outOfRange(start, total)
		}
		if start > end {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Invalid range %s: start is after end", token),
				pageSpecHint(total),
			)
		}
		if end > total {
			return nil, outOfRange(end, total)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func parseRange(token string, total int) (int, int, error) {
	first, last, isRange := strings.Cut(token, "-")
	start, err := parsePage(first, token, total)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}
	if strings.EqualFold(last, "end") {
		return start, total, nil
	}
	end, err := parsePage(last, token, total)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parsePage(s, token string, total int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.NewValidationError("Invalid page range "+strconv.Quote(token), pageSpecHint(total))
	}
	return n, nil
}

func outOfRange(page, total int) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("Page %d is out of range", page),
		fmt.Sprintf("This document has pages 1-%d.", total),
	)
}

func pageSpecHint(total int) string {
	hint := "Examples: /split 1-3, /split 1,3,5, /split 2-end"
	if total > 0 {
		hint = fmt.Sprintf("This document has %d pages. %s", total, hint)
	}
	return hint
}
