package serializer

import "github.com/ValentinKolb/dFeed/rpc/common"

// IRPCSerializer converts messages to and from their wire representation
type IRPCSerializer interface {
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, fields not present in b are reset to their zero value
	Deserialize(b []byte, msg *common.Message) error
}
