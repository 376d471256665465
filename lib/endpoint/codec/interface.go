package codec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is the full typed value of one key. Only the field matching Type is used.
type Record struct {
	Type   endpoint.ValueType `json:"type"`
	String string             `json:"string,omitempty"`
	Hash   map[string]string  `json:"hash,omitempty"`
	ZSet   []endpoint.Z       `json:"zset,omitempty"`
	Set    []string           `json:"set,omitempty"`
	List   []string           `json:"list,omitempty"`
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	c := Record{Type: r.Type, String: r.String}
	if r.Hash != nil {
		c.Hash = make(map[string]string, len(r.Hash))
		for k, v := range r.Hash {
			c.Hash[k] = v
		}
	}
	if r.ZSet != nil {
		c.ZSet = append([]endpoint.Z(nil), r.ZSet...)
	}
	if r.Set != nil {
		c.Set = append([]string(nil), r.Set...)
	}
	if r.List != nil {
		c.List = append([]string(nil), r.List...)
	}
	return c
}

// Empty reports whether a collection record has no elements left.
// Redis removes such keys, and so do the endpoints built on Record.
func (r Record) Empty() bool {
	switch r.Type {
	case endpoint.TypeHash:
		return len(r.Hash) == 0
	case endpoint.TypeSortedSet:
		return len(r.ZSet) == 0
	case endpoint.TypeSet:
		return len(r.Set) == 0
	case endpoint.TypeList:
		return len(r.List) == 0
	default:
		return false
	}
}

// SortZSet orders sorted set members by score, ties by member, like ZRANGE does.
func SortZSet(members []endpoint.Z) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ICodec is the interface for all Record encodings.
// The encoding is used as the Dump format of the native endpoints and as the
// storage format of the badger endpoint.
type ICodec interface {
	// Name returns the short name of the codec (json, gob, binary)
	Name() string
	// Version returns the version of the encoding
	Version() int
	// Encode encodes a Record into a byte array
	Encode(r Record) ([]byte, error)
	// Decode decodes a byte array into a Record
	Decode(b []byte, r *Record) error
}

// ByName returns the codec registered under the given name
func ByName(name string) (ICodec, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	case "binary":
		return NewBinaryCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (expected one of: json, gob, binary)", name)
	}
}

// Format returns the dump format produced by Marshal with the given codec
func Format(c ICodec) endpoint.DumpFormat {
	return endpoint.DumpFormat{
		Family:  "kvcopy-" + c.Name(),
		Version: c.Version(),
	}
}

// --------------------------------------------------------------------------
// Blob framing
// --------------------------------------------------------------------------

// blobs start with a magic number, the codec name length, the codec name and the version
const magicNum = "KVCP"

// Marshal encodes a record into a self-describing blob
func Marshal(c ICodec, r Record) ([]byte, error) {
	payload, err := c.Encode(r)
	if err != nil {
		return nil, err
	}

	name := c.Name()
	var buf bytes.Buffer
	buf.Grow(len(magicNum) + 2 + len(name) + len(payload))
	buf.WriteString(magicNum)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.WriteByte(byte(c.Version()))
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal decodes a blob created by Marshal. It fails if the blob was
// created by another codec or a newer version of the same codec.
func Unmarshal(c ICodec, blob []byte) (Record, error) {
	var r Record

	// Read and verify magic number
	if len(blob) < len(magicNum)+2 || string(blob[:len(magicNum)]) != magicNum {
		return r, endpoint.NewError(endpoint.RetCInvalidOperation, "invalid blob format: magic number mismatch")
	}
	pos := len(magicNum)

	// Read and verify codec name
	nameLen := int(blob[pos])
	pos++
	if pos+nameLen+1 > len(blob) {
		return r, endpoint.NewError(endpoint.RetCInvalidOperation, "invalid blob format: truncated header")
	}
	if name := string(blob[pos : pos+nameLen]); name != c.Name() {
		return r, endpoint.Errorf(endpoint.RetCInvalidOperation, "blob was encoded with codec %s, expected %s", name, c.Name())
	}
	pos += nameLen

	// Read and verify version
	if version := int(blob[pos]); version > c.Version() {
		return r, endpoint.Errorf(endpoint.RetCInvalidOperation, "unsupported blob version: %d (expected at most %d)", version, c.Version())
	}
	pos++

	if err := c.Decode(blob[pos:], &r); err != nil {
		return r, endpoint.Errorf(endpoint.RetCInvalidOperation, "decode blob: %v", err)
	}
	if !r.Type.Known() {
		return r, endpoint.Errorf(endpoint.RetCInvalidOperation, "blob holds unknown type %q", r.Type)
	}
	return r, nil
}
