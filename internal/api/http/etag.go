package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spaolacci/murmur3"
)

// weakETag returns a weak entity tag over body.
func weakETag(body []byte) string {
	h1, h2 := murmur3.Sum128(body)
	return fmt.Sprintf(`W/"%016x%016x"`, h1, h2)
}

// etagMatches reports whether an If-None-Match header value lists etag.
// Weak comparison is used, so the W/ prefix is ignored on both sides.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}

// writeCacheableJSON encodes data, tags it with a weak ETag and answers 304
// when the client already holds the same representation.
func writeCacheableJSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response", "", GetRequestID(r.Context()))
		return
	}

	etag := weakETag(body)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
