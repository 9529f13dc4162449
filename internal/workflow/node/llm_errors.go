package node

import "strings"

// 供应商不支持 response_format/json_schema 时的报错特征
var responseFormatMarkers = []string{
	"response_format",
	"response_schema",
	"json_schema",
	"failed to parse",
}

// IsResponseFormatUnsupportedError 结构化输出被拒绝，调用方应退回纯文本 + JSON 抽取
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range responseFormatMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return strings.Contains(msg, "response") &&
		(strings.Contains(msg, "unknown parameter") || strings.Contains(msg, "invalid"))
}
