package server

import (
	"bufio"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
)

// LogHandlers serves the tail of the rotating log file
type LogHandlers struct {
	path string
	log  zerolog.Logger
}

// NewLogHandlers creates a new log handlers instance. An empty path means
// logs only go to the console and the endpoint reports 404.
func NewLogHandlers(path string, log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		path: path,
		log:  log.With().Str("component", "log_handlers").Logger(),
	}
}

// LogContentResponse represents log content
type LogContentResponse struct {
	Lines  []string `json:"lines"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// HandleGetLogs handles GET /api/system/logs?lines=&level=&search=
func (h *LogHandlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	if h.path == "" {
		http.Error(w, "File logging is not enabled", http.StatusNotFound)
		return
	}

	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		lines = min(parsed, maxLogLines)
	}
	level := r.URL.Query().Get("level")
	search := r.URL.Query().Get("search")

	tail, err := tailFile(h.path, lines)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, h.log, http.StatusOK, LogContentResponse{Lines: []string{}, Status: "ok"})
			return
		}
		h.log.Error().Err(err).Msg("Failed to read log file")
		http.Error(w, "Failed to read logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusOK, LogContentResponse{
		Lines:  filterLogs(tail, level, search),
		Total:  len(tail),
		Status: "ok",
	})
}

// tailFile returns the last n lines of the file at path
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ring := make([]string, 0, n)
	start := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[start] = scanner.Text()
		start = (start + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return append(ring[start:], ring[:start]...), nil
}

// filterLogs filters log lines by level and search term
func filterLogs(lines []string, level string, search string) []string {
	filtered := make([]string, 0, len(lines))
	search = strings.ToLower(search)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if level != "" && !lineMatchesLevel(line, level) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(line), search) {
			continue
		}
		filtered = append(filtered, line)
	}
	return filtered
}

// lineMatchesLevel checks zerolog JSON lines ({"level":"error",...}) and
// console lines (ERR, WRN, INF ...)
func lineMatchesLevel(line string, level string) bool {
	lower := strings.ToLower(level)
	if strings.Contains(line, `"level"`) {
		return strings.Contains(line, `"level":"`+lower+`"`)
	}

	abbrev := map[string]string{
		"trace": "TRC", "debug": "DBG", "info": "INF",
		"warn": "WRN", "error": "ERR", "fatal": "FTL", "panic": "PNC",
	}[lower]
	upper := strings.ToUpper(line)
	return strings.Contains(upper, " "+strings.ToUpper(level)+" ") ||
		(abbrev != "" && strings.Contains(upper, " "+abbrev+" "))
}
