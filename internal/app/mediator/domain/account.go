package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountRef 帳本分配的帳戶 ID
type AccountRef int64

func (r AccountRef) String() string {
	return fmt.Sprintf("#%d", int64(r))
}

// Valid 帳本的帳戶 ID 從 0 開始
func (r AccountRef) Valid() bool {
	return r >= 0
}

// AccountKind 帳戶種類
type AccountKind uint8

const (
	// 個人帳戶，與玩家身分一對一
	AccountKindPersonal AccountKind = 1
	// 共用 (商業) 帳戶
	AccountKindShared AccountKind = 2
)

func (k AccountKind) String() string {
	switch k {
	case AccountKindPersonal:
		return "personal"
	case AccountKindShared:
		return "shared"
	default:
		return "unknown"
	}
}

// AccountMetadata 帳本回傳的帳戶資料
type AccountMetadata struct {
	ID                    AccountRef    `json:"id"`
	Kind                  AccountKind   `json:"kind"`
	Owner                 uuid.NullUUID `json:"owner"`
	Name                  string        `json:"name,omitempty"`
	RequiresAuthorization bool          `json:"requires_authorization"`
}

// Side 交易的哪一方
type Side uint8

const (
	SideSender   Side = 1
	SideReceiver Side = 2
)

func (s Side) String() string {
	switch s {
	case SideSender:
		return "sender"
	case SideReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// AccountClass 交易某一方的帳戶分類
//
// 只有三種實作: PersonalClass, SharedClass, PrivilegedClass。
// 介面的 unexported method 讓外部 package 無法新增其他分類。
type AccountClass interface {
	accountClass()
	String() string
}

// PersonalClass 個人帳戶，帳戶 ID 延後到確定需要轉帳時才解析 (可能會建立帳戶)
type PersonalClass struct {
	Owner uuid.UUID
}

// SharedClass 交易附帶的共用帳戶
type SharedClass struct {
	Ref AccountRef
}

// PrivilegedClass 管理員商店等沒有餘額的特權身分，不需要帳本異動
type PrivilegedClass struct {
	Identity uuid.UUID
}

func (PersonalClass) accountClass()   {}
func (SharedClass) accountClass()     {}
func (PrivilegedClass) accountClass() {}

func (c PersonalClass) String() string   { return "personal(" + c.Owner.String() + ")" }
func (c SharedClass) String() string     { return "shared(" + c.Ref.String() + ")" }
func (c PrivilegedClass) String() string { return "privileged(" + c.Identity.String() + ")" }

// IsPrivileged 回傳該分類是否為特權身分
func IsPrivileged(c AccountClass) bool {
	_, ok := c.(PrivilegedClass)
	return ok
}
