package shield

import "net/http"

// HeadToGet serves HEAD requests through the GET routes (chi answers 405
// otherwise). The response keeps its headers and status but drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		r.Method = http.MethodGet
		next.ServeHTTP(headWriter{w}, r)
	})
}

// headWriter discards the body of a HEAD response.
type headWriter struct {
	http.ResponseWriter
}

func (h headWriter) Write(p []byte) (int, error) { return len(p), nil }

func (h headWriter) Unwrap() http.ResponseWriter { return h.ResponseWriter }
