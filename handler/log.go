package handler

import (
	"net/http"
	"time"
)

func logRequest(req *http.Request, status int, took time.Duration) {
	log.Infof("%s -- %s -- %s -- %d -- %s", req.RemoteAddr, req.Method, req.URL.Path, status, took)
}

func logAndReturnError(w http.ResponseWriter, httpResponseStr string, code int, consoleStr ...string) {
	// consoleStr is optional.
	if len(consoleStr) > 0 {
		log.Errorln(consoleStr[0])
	} else {
		log.Errorln(httpResponseStr)
	}
	http.Error(w, httpResponseStr, code)
}
