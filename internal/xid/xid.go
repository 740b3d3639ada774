package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// New returns a prefixed identifier that sorts roughly by creation time.
func New(prefix string) string {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 36)
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%s", prefix, stamp)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, hex.EncodeToString(buf))
}
