package fixture

import (
	"net/http"
	"strconv"
	"time"
)

// Trickle serves data as an attachment in chunks, pausing between them, so
// that the receiving file grows over time the way a slow download does.
func Trickle(data []byte, fileName string, chunks int, pause time.Duration) http.Handler {
	if chunks < 1 {
		chunks = 1
	}
	res := Resource{Attachment: fileName}
	disposition := res.contentDisposition()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", defaultContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		size := (len(data) + chunks - 1) / chunks
		for start := 0; start < len(data); start += size {
			if start > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(pause):
				}
			}
			end := min(start+size, len(data))
			if _, err := w.Write(data[start:end]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
}
