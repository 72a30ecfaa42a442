package gotham

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestIDGenerator 生成请求标识
type RequestIDGenerator func() string

// UUIDGenerator 生成随机的 UUIDv4
func UUIDGenerator() string {
	return uuid.NewString()
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// ULIDGenerator 生成按时间单调递增的 ULID，适合按标识排序日志
func ULIDGenerator() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// RequestIDGeneratorByName 返回名称对应的生成器，支持 uuid 和 ulid。
func RequestIDGeneratorByName(name string) (RequestIDGenerator, bool) {
	switch name {
	case "", "uuid":
		return UUIDGenerator, true
	case "ulid":
		return ULIDGenerator, true
	default:
		return nil, false
	}
}
