package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Frame layout (big endian):
//
//	[0:8]   shard id
//	[8:16]  request id
//	[16:20] payload length
//	[20:]   payload
const (
	frameHeaderSize = 20

	// maxFrameSize bounds the payload a peer may announce, a 40 id page or a
	// push-many to a few thousand users is far below it
	maxFrameSize = 64 << 20
)

// writeFrame writes header and payload with a single vectored write
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame payload of %d bytes exceeds limit of %d", len(data), maxFrameSize)
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	if len(data) == 0 {
		_, err := conn.Write(header[:])
		return err
	}

	b := net.Buffers{header[:], data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame. The payload is read into buf if it fits, otherwise
// into a new slice, so the returned data may alias buf.
func readFrame(conn net.Conn, buf []byte) (shardID uint64, requestID uint64, data []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(header[0:8])
	requestID = binary.BigEndian.Uint64(header[8:16])
	size := int(binary.BigEndian.Uint32(header[16:20]))

	if size > maxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame payload of %d bytes exceeds limit of %d", size, maxFrameSize)
	}
	if size == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < size {
		buf = make([]byte, size)
	}
	if _, err = io.ReadFull(conn, buf[:size]); err != nil {
		return 0, 0, nil, err
	}
	return shardID, requestID, buf[:size], nil
}
