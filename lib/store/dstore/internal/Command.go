package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPush     CommandType = iota // Insert an id into one timeline.
	CommandTPushMany                    // Insert an id into several timelines (fan-out).
	CommandTRemove                      // Remove an id from a timeline.
	CommandTTrim                        // Enforce the size bound of a timeline.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPush:
		return "Push"
	case CommandTPushMany:
		return "PushMany"
	case CommandTRemove:
		return "Remove"
	case CommandTTrim:
		return "Trim"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTPush, CommandTPushMany:
		return db.FeatureInsert, nil
	case CommandTRemove:
		return db.FeatureRemove, nil
	case CommandTTrim:
		return db.FeatureTrim, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type  CommandType
	ID    timeline.StatusID
	Users []string // exactly one user for all types except CommandTPushMany
}

// header: Type + ID + user count
const headerSize = 1 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := headerSize
	for _, user := range command.Users {
		size += 4 + len(user)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for the status id (big endian),
// 4 bytes for the number of users (big endian),
// per user: 4 bytes length (big endian) and N bytes user data
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.ID)
	binary.BigEndian.PutUint32(result[9:13], uint32(len(command.Users)))

	pos := headerSize
	for _, user := range command.Users {
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(user)))
		pos += 4
		pos += copy(result[pos:], user)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.ID = binary.BigEndian.Uint64(data[1:9])
	count := binary.BigEndian.Uint32(data[9:13])

	// every user needs at least its length prefix
	if uint64(count)*4 > uint64(len(data)-headerSize) {
		return fmt.Errorf("data too short for %d users", count)
	}

	// Reuse existing buffer if possible to reduce allocations
	if cap(command.Users) < int(count) {
		command.Users = make([]string, count)
	} else {
		command.Users = command.Users[:count]
	}

	pos := headerSize
	for i := range command.Users {
		if len(data) < pos+4 {
			return fmt.Errorf("data too short for user %d", i)
		}
		userLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if len(data) < pos+userLen {
			return fmt.Errorf("data too short for user of length %d", userLen)
		}
		command.Users[i] = string(data[pos : pos+userLen])
		pos += userLen
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after command", len(data)-pos)
	}
	return nil
}
