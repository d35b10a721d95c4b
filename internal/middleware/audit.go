package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextAuditLog = "audit_log"
	HeaderRequestID = "X-Request-ID"
	maxAuditBody    = 8 << 10
)

// AuditEntry is one logged request.
type AuditEntry struct {
	ID           string
	Method       string
	Path         string
	IP           string
	Account      string
	StatusCode   int
	LatencyMs    int64
	RequestBody  string
	ResponseBody string
	Context      map[string]interface{}
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware tags each request with an id and writes a structured
// log line once it completes. Signatures and keys are redacted.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)

		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		entry := &AuditEntry{
			ID:      reqID,
			Method:  c.Request.Method,
			Path:    c.Request.URL.Path,
			IP:      c.ClientIP(),
			Context: make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, entry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if account, ok := AccountFrom(c); ok {
			entry.Account = account.Hex()
		}
		entry.RequestBody = redactAuditBody(c.Request.URL.Path, reqBodyBytes)
		entry.StatusCode = c.Writer.Status()
		entry.ResponseBody = redactAuditBody(c.Request.URL.Path, blw.body.Bytes())
		entry.LatencyMs = time.Since(start).Milliseconds()

		args := []any{
			"request_id", entry.ID,
			"method", entry.Method,
			"path", entry.Path,
			"ip", entry.IP,
			"status", entry.StatusCode,
			"latency_ms", entry.LatencyMs,
		}
		if entry.Account != "" {
			args = append(args, "account", entry.Account)
		}
		if entry.Method != "GET" {
			args = append(args, "request", entry.RequestBody, "response", entry.ResponseBody)
		}
		for k, v := range entry.Context {
			args = append(args, k, v)
		}
		logger.Info("request", args...)
	}
}

// AddAuditContext lets handlers attach business fields to the request log.
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*AuditEntry); ok {
			entry.Context[key] = value
		}
	}
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxAuditBody {
		return "[truncated]"
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/fills"):
		return true
	case strings.HasPrefix(path, "/v1/admin"):
		return true
	case strings.HasPrefix(path, "/v1/orders"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "signature",
		"sig",
		"private_key",
		"privatekey",
		"admin_key",
		"adminkey":
		return true
	default:
		return false
	}
}
