package object

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/i5heu/ouroboros-objects/pkg/types"
)

const workingIDSize = 9

// ID names an object inside a workspace. A committed object is named by its
// 20 byte content key. An object that was never committed, or was modified
// since, carries a 9 byte working id: the byte 'w' followed by a big endian
// sequence number. The sizes differ, so the two never collide.
type ID string

// UnattachedID is the working id of objects created outside a repository.
const UnattachedID ID = "w\x00\x00\x00\x00\x00\x00\x00\x00"

func KeyID(k types.Key) ID {
	return ID(k[:])
}

func workingID(n uint64) ID {
	var b [workingIDSize]byte
	b[0] = 'w'
	binary.BigEndian.PutUint64(b[1:], n)
	return ID(b[:])
}

// IDFromBytes interprets the key bytes stored in a link.
func IDFromBytes(b []byte) ID {
	return ID(b)
}

func (id ID) IsKey() bool {
	return len(id) == types.KeySize
}

func (id ID) IsWorking() bool {
	return len(id) == workingIDSize && id[0] == 'w'
}

func (id ID) Key() (types.Key, bool) {
	var k types.Key
	if !id.IsKey() {
		return k, false
	}
	copy(k[:], id)
	return k, true
}

func (id ID) Bytes() []byte {
	return []byte(id)
}

func (id ID) String() string {
	switch {
	case id == "":
		return "<unset>"
	case id.IsKey():
		return hex.EncodeToString([]byte(id))
	case id.IsWorking():
		return "w" + strconv.FormatUint(binary.BigEndian.Uint64([]byte(id[1:])), 10)
	default:
		return "0x" + hex.EncodeToString([]byte(id))
	}
}
