// Package serializer converts common.Message values to bytes and back.
//
// Three implementations of IRPCSerializer exist:
//
//   - Binary (NewBinarySerializer): a compact hand written format. One type byte and
//     a 16 bit field mask are followed by the present fields only, so a push costs a
//     few bytes beyond the user name and a page of ids costs 8 bytes per id.
//     This is the default of the cli.
//   - JSON (NewJSONSerializer): readable on the wire, message types are encoded by name.
//     Useful for debugging and for the http transport.
//   - GOB (NewGOBSerializer): encoding/gob. Largest and slowest of the three, kept for
//     completeness.
//
// Client and server must use the same serializer. All implementations are stateless
// and safe for concurrent use.
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewPushRequest("alice", 1001))
//	...
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer
