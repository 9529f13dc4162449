package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BindUUIDParam 读取路径参数并校验为 UUID，失败时已写入 400
func BindUUIDParam(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		BadRequest(c, "invalid "+name+": must be a UUID")
		return "", false
	}
	return id.String(), true
}

// ValidUUID 校验请求体中的 ID
func ValidUUID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// QueryBool 读取布尔查询参数，非法值按 false 处理
func QueryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

func parseIntWithDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// QueryInt 读取整数查询参数
func QueryInt(c *gin.Context, name string, def int) int {
	return parseIntWithDefault(c.Query(name), def)
}
