// Package obs holds the service-wide observability plumbing: the shared
// JSON-line logger, prometheus instrumentation and the build info gauge.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide logger. Lines go to stdout with no prefix
// or flags; every field, timestamps included, lives inside the JSON payload.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one JSON object per handled HTTP request.
func LogRequest(fields map[string]any) {
	data, err := json.Marshal(fields)
	if err != nil {
		Logger().Printf(`{"level":"error","msg":"log marshal failed","error":%q}`+"\n", err.Error())
		return
	}
	Logger().Println(string(data))
}
