// Package codec implements the CommandCodec collaborator: turning a
// caller-supplied command (or a pipeline of them) into RESP wire bytes.
// spec.md scopes serialization out of the core's concerns; this package
// is the default implementation a caller wires in, grounded on the RESP
// bulk-string encoding in Luit-rcp/parse/parse.go's Item.bytes, adapted
// from a read-side Item to a write-side command builder.
package codec

import (
	"strconv"
)

// Encode serializes a single Redis command (command name plus arguments)
// as a RESP array of bulk strings, e.g. Encode("SET", "k", "v").
func Encode(args ...string) []byte {
	buf := make([]byte, 0, 32*len(args))
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, a := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(a)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, a...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// EncodePipeline concatenates multiple commands into one payload, the
// shape the handshake driver needs for its "single pipelined batch"
// (§4.3): each element of cmds is the argv of one command.
func EncodePipeline(cmds [][]string) []byte {
	var out []byte
	for _, args := range cmds {
		out = append(out, Encode(args...)...)
	}
	return out
}
