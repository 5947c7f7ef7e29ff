package internal

import (
	"encoding/binary"
	"slices"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Push",
			command:  Command{Type: CommandTPush, ID: 42, Users: []string{"alice"}},
			expected: 1 + 8 + 4 + 4 + 5, // Type + ID + Count + Len + User
		},
		{
			name:     "PushMany",
			command:  Command{Type: CommandTPushMany, ID: 42, Users: []string{"a", "bb", ""}},
			expected: 1 + 8 + 4 + (4 + 1) + (4 + 2) + (4 + 0),
		},
		{
			name:     "No users",
			command:  Command{Type: CommandTTrim},
			expected: 1 + 8 + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{"Push", Command{Type: CommandTPush, ID: 1001, Users: []string{"alice"}}},
		{"PushMany", Command{Type: CommandTPushMany, ID: 7, Users: []string{"alice", "bob", "carol"}}},
		{"Remove", Command{Type: CommandTRemove, ID: 1, Users: []string{"bob"}}},
		{"Trim", Command{Type: CommandTTrim, Users: []string{"carol"}}},
		{"Max id", Command{Type: CommandTPush, ID: 18446744073709551615, Users: []string{"max"}}},
		{"Unicode user", Command{Type: CommandTPush, ID: 3, Users: []string{"你好世界"}}},
		{"Empty user", Command{Type: CommandTPush, ID: 3, Users: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var newCommand Command
			if err := newCommand.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if newCommand.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", newCommand.Type, tt.command.Type)
			}
			if newCommand.ID != tt.command.ID {
				t.Errorf("ID mismatch: got %v, want %v", newCommand.ID, tt.command.ID)
			}
			if !slices.Equal(newCommand.Users, tt.command.Users) {
				t.Errorf("Users mismatch: got %q, want %q", newCommand.Users, tt.command.Users)
			}
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	header := func(count uint32) []byte {
		data := make([]byte, 13)
		data[0] = byte(CommandTPush)
		binary.BigEndian.PutUint32(data[9:13], count)
		return data
	}

	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{"Empty data", []byte{}, "data too short for command"},
		{"Data too short (less than header)", []byte{1, 2, 3, 4, 5}, "data too short for command"},
		{"Too many users", header(1000), "data too short for 1000 users"},
		{
			name: "Invalid user length",
			data: func() []byte {
				data := append(header(1), 0, 0, 0, 0)
				binary.BigEndian.PutUint32(data[13:17], 50)
				return data
			}(),
			expectedErr: "data too short for user of length 50",
		},
		{"Trailing bytes", append(header(0), 1, 2), "2 trailing bytes after command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{Type: CommandTRemove, ID: 12345, Users: []string{"bob"}}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTRemove)
	binary.BigEndian.PutUint64(expected[1:9], 12345)
	binary.BigEndian.PutUint32(expected[9:13], 1)
	binary.BigEndian.PutUint32(expected[13:17], 3)
	copy(expected[17:], "bob")

	if got := cmd.Serialize(); !slices.Equal(got, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", got, expected)
	}
}

// TestToDBFeature tests the feature mapping of all command types
func TestToDBFeature(t *testing.T) {
	for _, ct := range []CommandType{CommandTPush, CommandTPushMany, CommandTRemove, CommandTTrim} {
		if _, err := ct.ToDBFeature(); err != nil {
			t.Errorf("%s: unexpected error %v", ct, err)
		}
	}
	if _, err := CommandType(99).ToDBFeature(); err == nil {
		t.Errorf("Expected error for unknown command type")
	}
}
