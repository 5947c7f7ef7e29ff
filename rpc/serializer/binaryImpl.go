package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dFeed/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 2 bytes flags (big endian), then every present field
// in flag order. Strings and byte slices are prefixed with a 4 byte length,
// lists with a 4 byte element count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasUser   uint16 = 1 << 0
	hasUsers  uint16 = 1 << 1
	hasID     uint16 = 1 << 2
	hasSince  uint16 = 1 << 3
	hasMax    uint16 = 1 << 4
	hasLimit  uint16 = 1 << 5
	hasCount  uint16 = 1 << 6
	hasOffset uint16 = 1 << 7
	hasIDs    uint16 = 1 << 8
	hasN      uint16 = 1 << 9
	hasOk     uint16 = 1 << 10
	hasErr    uint16 = 1 << 11
	hasCode   uint16 = 1 << 12
	hasMeta   uint16 = 1 << 13
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := &writer{buf: make([]byte, b.sizeBytes(msg)), pos: headerSize}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16

	if msg.User != "" {
		flags |= hasUser
		w.bytes([]byte(msg.User))
	}

	if len(msg.Users) > 0 {
		flags |= hasUsers
		w.uint32(uint32(len(msg.Users)))
		for _, u := range msg.Users {
			w.bytes([]byte(u))
		}
	}

	if msg.ID != 0 {
		flags |= hasID
		w.uint64(msg.ID)
	}

	if msg.HasSince || msg.SinceID != 0 {
		flags |= hasSince
		w.uint64(msg.SinceID)
		w.bool(msg.HasSince)
	}

	if msg.HasMax || msg.MaxID != 0 {
		flags |= hasMax
		w.uint64(msg.MaxID)
		w.bool(msg.HasMax)
	}

	if msg.Limit != 0 {
		flags |= hasLimit
		w.uint64(uint64(msg.Limit))
	}

	if msg.Count != 0 {
		flags |= hasCount
		w.uint64(uint64(msg.Count))
	}

	if msg.Offset != 0 {
		flags |= hasOffset
		w.uint64(uint64(msg.Offset))
	}

	if len(msg.IDs) > 0 {
		flags |= hasIDs
		w.uint32(uint32(len(msg.IDs)))
		for _, id := range msg.IDs {
			w.uint64(id)
		}
	}

	if msg.N != 0 {
		flags |= hasN
		w.uint64(uint64(msg.N))
	}

	if msg.Ok {
		flags |= hasOk
		w.bool(true)
	}

	if msg.Err != "" {
		flags |= hasErr
		w.bytes([]byte(msg.Err))
	}

	if msg.Code != 0 {
		flags |= hasCode
		w.uint64(msg.Code)
	}

	if len(msg.Meta) > 0 {
		flags |= hasMeta
		w.bytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := &reader{data: data, pos: headerSize}

	if flags&hasUser != 0 {
		user, err := r.bytes("user")
		if err != nil {
			return err
		}
		msg.User = string(user)
	}

	if flags&hasUsers != 0 {
		n, err := r.uint32("user count")
		if err != nil {
			return err
		}
		// every user needs at least its length prefix
		if int(n) > r.remaining()/4 {
			return fmt.Errorf("data too short for %d users", n)
		}
		msg.Users = make([]string, n)
		for i := range msg.Users {
			user, err := r.bytes("users")
			if err != nil {
				return err
			}
			msg.Users[i] = string(user)
		}
	}

	if flags&hasID != 0 {
		id, err := r.uint64("id")
		if err != nil {
			return err
		}
		msg.ID = id
	}

	if flags&hasSince != 0 {
		id, err := r.uint64("since_id")
		if err != nil {
			return err
		}
		set, err := r.bool("since_id")
		if err != nil {
			return err
		}
		msg.SinceID, msg.HasSince = id, set
	}

	if flags&hasMax != 0 {
		id, err := r.uint64("max_id")
		if err != nil {
			return err
		}
		set, err := r.bool("max_id")
		if err != nil {
			return err
		}
		msg.MaxID, msg.HasMax = id, set
	}

	for _, f := range []struct {
		flag uint16
		name string
		dst  *int64
	}{
		{hasLimit, "limit", &msg.Limit},
		{hasCount, "count", &msg.Count},
		{hasOffset, "offset", &msg.Offset},
	} {
		if flags&f.flag == 0 {
			continue
		}
		v, err := r.uint64(f.name)
		if err != nil {
			return err
		}
		*f.dst = int64(v)
	}

	if flags&hasIDs != 0 {
		n, err := r.uint32("id count")
		if err != nil {
			return err
		}
		if int(n) > r.remaining()/8 {
			return fmt.Errorf("data too short for %d ids", n)
		}
		msg.IDs = make([]uint64, n)
		for i := range msg.IDs {
			msg.IDs[i], _ = r.uint64("ids")
		}
	}

	if flags&hasN != 0 {
		n, err := r.uint64("n")
		if err != nil {
			return err
		}
		msg.N = int64(n)
	}

	if flags&hasOk != 0 {
		ok, err := r.bool("ok")
		if err != nil {
			return err
		}
		msg.Ok = ok
	}

	if flags&hasErr != 0 {
		e, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(e)
	}

	if flags&hasCode != 0 {
		code, err := r.uint64("code")
		if err != nil {
			return err
		}
		msg.Code = code
	}

	if flags&hasMeta != 0 {
		meta, err := r.bytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = make([]byte, len(meta))
		copy(msg.Meta, meta)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.User != "" {
		size += 4 + len(msg.User)
	}
	if len(msg.Users) > 0 {
		size += 4
		for _, u := range msg.Users {
			size += 4 + len(u)
		}
	}
	if msg.ID != 0 {
		size += 8
	}
	if msg.HasSince || msg.SinceID != 0 {
		size += 9
	}
	if msg.HasMax || msg.MaxID != 0 {
		size += 9
	}
	if msg.Limit != 0 {
		size += 8
	}
	if msg.Count != 0 {
		size += 8
	}
	if msg.Offset != 0 {
		size += 8
	}
	if len(msg.IDs) > 0 {
		size += 4 + 8*len(msg.IDs)
	}
	if msg.N != 0 {
		size += 8
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Code != 0 {
		size += 8
	}
	if len(msg.Meta) > 0 {
		size += 4 + len(msg.Meta)
	}

	return size
}

// writer writes into a buffer sized by sizeBytes
type writer struct {
	buf []byte
	pos int
}

func (w *writer) uint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *writer) uint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

func (w *writer) bool(v bool) {
	if v {
		w.buf[w.pos] = 1
	}
	w.pos++
}

func (w *writer) bytes(v []byte) {
	w.uint32(uint32(len(v)))
	w.pos += copy(w.buf[w.pos:], v)
}

// reader reads fields and reports which field was truncated
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) uint32(field string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("data too short for %s length", field)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bool(field string) (bool, error) {
	if r.remaining() < 1 {
		return false, fmt.Errorf("data too short for %s flag", field)
	}
	v := r.data[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) bytes(field string) ([]byte, error) {
	n, err := r.uint32(field)
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	v := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return v, nil
}
