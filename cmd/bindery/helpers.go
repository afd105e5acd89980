package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bindery/internal/stagecfg"
)

var titleCaser = cases.Title(language.Und)

// stageLabel renders a stage key for humans: "to-scan" becomes "To Scan".
func stageLabel(key stagecfg.Key) string {
	return titleCaser.String(strings.ReplaceAll(string(key), "-", " "))
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid identifier %q", value)
	}
	return id, nil
}

func parseIDList(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one identifier is required")
	}
	return ids, nil
}

func parseStageKey(value string) (stagecfg.Key, error) {
	key, ok := stagecfg.ParseKey(value)
	if !ok {
		var known []string
		for _, stage := range stagecfg.Sequence() {
			known = append(known, string(stage.Key))
		}
		return "", fmt.Errorf("unknown stage %q (known: %s)", value, strings.Join(known, ", "))
	}
	return key, nil
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatOptional(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
