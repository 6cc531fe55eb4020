package datasource

import "net/http"

// isFatalHTTPStatus reports whether status indicates that reconnecting will never succeed, e.g.
// an invalid SDK key. The caller should stop retrying and report permanent failure.
func isFatalHTTPStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
