package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	logOnce sync.Once
	logDst  *log.Logger
)

// Logger returns the process-wide line logger. Girder writes one JSON object
// per line to stdout, and every log producer shares this instance so tests
// can redirect the stream with SetOutput.
func Logger() *log.Logger {
	logOnce.Do(func() {
		logDst = log.New(os.Stdout, "", 0)
	})
	return logDst
}

// LogRequest serializes the entry as a single JSON line. An entry that
// cannot be marshaled is reported as an error line rather than dropped.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{
			"level": "error",
			"msg":   "unserializable log entry",
			"cause": err.Error(),
		})
		Logger().Println(string(fallback))
		return
	}
	Logger().Println(string(data))
}
