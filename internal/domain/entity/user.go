// Package entity 定义领域实体
package entity

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleAnalyst UserRole = "analyst"
	UserRoleCoach   UserRole = "coach"
	UserRolePlayer  UserRole = "player"
)

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleAnalyst, UserRoleCoach, UserRolePlayer:
		return true
	default:
		return false
	}
}

// Actor 发起请求的用户（由访问令牌解析而来）
type Actor struct {
	UserID string   `json:"user_id"`
	OrgID  string   `json:"org_id"`
	Role   UserRole `json:"role"`
	TeamID string   `json:"team_id,omitempty"`
}

// CanAnnotate 是否可以写笔记、触发重新生成
func (a Actor) CanAnnotate() bool {
	switch a.Role {
	case UserRoleAdmin, UserRoleAnalyst, UserRoleCoach:
		return true
	default:
		return false
	}
}

// IsAdmin 是否为组织管理员
func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}
