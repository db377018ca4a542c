package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

var errEmptyBody = errors.New("istek gövdesi boş")

// BindNestedOrFlat decodes the JSON body into obj. Clients may wrap the payload under key
// (e.g. {"loan": {...}}) or send it flat; both forms decode the same way. The body is
// restored so later reads still see it.
func BindNestedOrFlat(c *gin.Context, key string, obj any) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return errEmptyBody
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &wrapped); err == nil {
		if val, ok := wrapped[key]; ok {
			return json.Unmarshal(val, obj)
		}
	}

	return json.Unmarshal(bodyBytes, obj)
}
