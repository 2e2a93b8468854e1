package analysis

import (
	"net/http"

	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/logger"
)

// instrumentClient propagates the caller's request ID to the weather and
// qualifying upstreams and logs every outbound call. Query strings are never
// logged since the weather API key travels there.
func instrumentClient(client *httpclient.Client, log logger.Logger) {
	client.SetBeforeRequestHook(func(req *http.Request) {
		if id := logger.TraceID(req.Context()); id != "" && req.Header.Get("X-Request-ID") == "" {
			req.Header.Set("X-Request-ID", id)
		}
	})
	client.SetAfterResponseHook(func(req *http.Request, resp *http.Response, err error) {
		fields := []logger.Field{
			logger.String("method", req.Method),
			logger.String("host", req.URL.Host),
			logger.String("path", req.URL.Path),
		}
		if id := logger.TraceID(req.Context()); id != "" {
			fields = append(fields, logger.String("request_id", id))
		}
		if err != nil {
			log.Debug("outbound request failed", append(fields, logger.Error(err))...)
			return
		}
		log.Debug("outbound request", append(fields, logger.Int("status", resp.StatusCode))...)
	})
}
