package usecase

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

const (
	// DefaultKeyNamespace 冪等 key 的固定前綴
	DefaultKeyNamespace = "chestshop"
	// UnknownContextTag 沒有來源標記時使用
	UnknownContextTag = "unknown"
)

// KeyBuilder 產生轉帳的冪等 token
//
// 每個欄位以長度前綴寫入 SHA-256，不同的欄位組合不會拼成相同的位元組。
type KeyBuilder struct {
	namespace string
	// instance: 每個程序一個，避免重啟後 counter 歸零造成碰撞
	instance uuid.UUID
	counter  atomic.Uint64
	clock    func() time.Time
}

// NewKeyBuilder 建立 KeyBuilder，namespace 為空時使用 DefaultKeyNamespace
func NewKeyBuilder(namespace string) *KeyBuilder {
	if namespace == "" {
		namespace = DefaultKeyNamespace
	}
	return &KeyBuilder{
		namespace: namespace,
		instance:  uuid.New(),
		clock:     time.Now,
	}
}

// WithClock 測試用
func (b *KeyBuilder) WithClock(clock func() time.Time) *KeyBuilder {
	b.clock = clock
	return b
}

// Nonce 回傳這次嘗試的 nonce
//
// 交易帶有 AttemptID 時直接使用 (重送會得到相同 token)；
// 否則以程序 ID、遞增 counter 與奈秒時間組成，每次呼叫都不同。
func (b *KeyBuilder) Nonce(tc domain.TransactionContext) string {
	if tc.AttemptID.Valid {
		return tc.AttemptID.UUID.String()
	}
	seq := b.counter.Add(1)
	return b.instance.String() + ":" + strconv.FormatUint(seq, 10) + ":" + strconv.FormatInt(b.clock().UnixNano(), 10)
}

// BuildKey 產生冪等 token
//
// 參數:
//
//	source, destination: 來源與目的 (帳戶 ID 或身分)
//	contextTag: 穩定的來源標記，空字串時使用 UnknownContextTag
//	nonce: Nonce 的回傳值
func (b *KeyBuilder) BuildKey(source, destination, contextTag, nonce string) domain.IdempotencyToken {
	if contextTag == "" {
		contextTag = UnknownContextTag
	}

	h := sha256.New()
	buf := make([]byte, 0, binary.MaxVarintLen64)
	for _, part := range []string{b.namespace, contextTag, source, destination, nonce} {
		buf = binary.AppendUvarint(buf[:0], uint64(len(part)))
		h.Write(buf)
		h.Write([]byte(part))
	}

	var token domain.IdempotencyToken
	copy(token[:], h.Sum(nil))
	return token
}
