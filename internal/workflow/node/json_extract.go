package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ExtractJSONObject 截取模型输出中的第一个完整 JSON 对象/数组，
// 模型可能在 JSON 前后夹杂说明文字或 ```json 代码块。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		if _, e := dec.Token(); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// ErrMalformedOutput 模型输出为空或不是合法 JSON
var ErrMalformedOutput = errors.New("malformed model output")

// DecodeJSON 从模型输出解析结构体
func DecodeJSON[T any](content string) (*T, error) {
	raw := ExtractJSONObject(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedOutput)
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &out, nil
}
