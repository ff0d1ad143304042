// Package reservation 提供营位预订的冲突控制、状态流转和定时扫描
package reservation

import "strings"

// Role 操作者角色
type Role string

// 操作者角色
const (
	RoleGuest  Role = "GUEST"  // 未登录预订人
	RoleUser   Role = "USER"   // 登录用户
	RoleOwner  Role = "OWNER"  // 营地经营者
	RoleAdmin  Role = "ADMIN"  // 平台管理员
	RoleSystem Role = "SYSTEM" // 定时任务或支付回调
)

// ParseRole 解析角色名，未知角色按登录用户处理
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(s)) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleSystem:
		return RoleSystem
	case RoleGuest:
		return RoleGuest
	}
	return RoleUser
}

// Actor 发起操作的主体
type Actor struct {
	Role   Role
	UserID int64
}

// SystemActor 系统操作者
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// CanCancelConfirmed 是否允许取消已确认的预订
func (a Actor) CanCancelConfirmed() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin || a.Role == RoleSystem
}

// trigger 指标中的触发来源
func (a Actor) trigger() string {
	return strings.ToLower(string(a.Role))
}
