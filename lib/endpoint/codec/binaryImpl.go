package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// NewBinaryCodec creates a new codec using a custom binary format
// optimized for speed and size
func NewBinaryCodec() ICodec {
	return &binaryCodecImpl{}
}

// binaryCodecImpl implements ICodec using a custom binary format:
//
//   - 1 byte: type tag
//   - string: 4 bytes length + data
//   - hash: 4 bytes count + count * (field, value) strings, fields sorted
//   - zset: 4 bytes count + count * (8 bytes score, member string)
//   - set, list: 4 bytes count + count * string
//
// All integers are big endian.
type binaryCodecImpl struct {
}

// Type tags
const (
	tagString byte = iota + 1
	tagHash
	tagSortedSet
	tagSet
	tagList
)

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (b binaryCodecImpl) Name() string { return "binary" }

func (b binaryCodecImpl) Version() int { return 1 }

func (b binaryCodecImpl) Encode(r Record) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, 0, b.sizeBytes(r))

	switch r.Type {
	case endpoint.TypeString:
		result = append(result, tagString)
		result = appendString(result, r.String)

	case endpoint.TypeHash:
		result = append(result, tagHash)
		result = binary.BigEndian.AppendUint32(result, uint32(len(r.Hash)))

		// sort the fields so equal hashes produce equal blobs
		fields := make([]string, 0, len(r.Hash))
		for f := range r.Hash {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			result = appendString(result, f)
			result = appendString(result, r.Hash[f])
		}

	case endpoint.TypeSortedSet:
		result = append(result, tagSortedSet)
		result = binary.BigEndian.AppendUint32(result, uint32(len(r.ZSet)))
		for _, z := range r.ZSet {
			result = binary.BigEndian.AppendUint64(result, math.Float64bits(z.Score))
			result = appendString(result, z.Member)
		}

	case endpoint.TypeSet:
		result = append(result, tagSet)
		result = appendStrings(result, r.Set)

	case endpoint.TypeList:
		result = append(result, tagList)
		result = appendStrings(result, r.List)

	default:
		return nil, fmt.Errorf("cannot encode value of type %q", r.Type)
	}

	return result, nil
}

func (b binaryCodecImpl) Decode(data []byte, r *Record) error {
	// Check minimum size (type tag)
	if len(data) < 1 {
		return fmt.Errorf("data too short for record header")
	}

	rd := reader{data: data, pos: 1}
	*r = Record{}

	switch data[0] {
	case tagString:
		r.Type = endpoint.TypeString
		s, err := rd.string()
		if err != nil {
			return err
		}
		r.String = s

	case tagHash:
		r.Type = endpoint.TypeHash
		count, err := rd.count(8)
		if err != nil {
			return err
		}
		r.Hash = make(map[string]string, count)
		for i := uint32(0); i < count; i++ {
			f, err := rd.string()
			if err != nil {
				return err
			}
			v, err := rd.string()
			if err != nil {
				return err
			}
			r.Hash[f] = v
		}

	case tagSortedSet:
		r.Type = endpoint.TypeSortedSet
		count, err := rd.count(12)
		if err != nil {
			return err
		}
		r.ZSet = make([]endpoint.Z, 0, count)
		for i := uint32(0); i < count; i++ {
			bits, err := rd.uint64()
			if err != nil {
				return err
			}
			m, err := rd.string()
			if err != nil {
				return err
			}
			r.ZSet = append(r.ZSet, endpoint.Z{Member: m, Score: math.Float64frombits(bits)})
		}

	case tagSet:
		r.Type = endpoint.TypeSet
		s, err := rd.strings()
		if err != nil {
			return err
		}
		r.Set = s

	case tagList:
		r.Type = endpoint.TypeList
		s, err := rd.strings()
		if err != nil {
			return err
		}
		r.List = s

	default:
		return fmt.Errorf("unknown type tag %d", data[0])
	}

	if rd.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after record", len(data)-rd.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the size of the encoded record
func (b binaryCodecImpl) sizeBytes(r Record) int {
	size := 1 + 4
	switch r.Type {
	case endpoint.TypeString:
		size += len(r.String)
	case endpoint.TypeHash:
		for f, v := range r.Hash {
			size += 8 + len(f) + len(v)
		}
	case endpoint.TypeSortedSet:
		for _, z := range r.ZSet {
			size += 12 + len(z.Member)
		}
	case endpoint.TypeSet:
		for _, s := range r.Set {
			size += 4 + len(s)
		}
	case endpoint.TypeList:
		for _, s := range r.List {
			size += 4 + len(s)
		}
	}
	return size
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendStrings(b []byte, s []string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	for _, e := range s {
		b = appendString(b, e)
	}
	return b
}

// reader reads length prefixed values from a byte slice
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for length at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for score at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", fmt.Errorf("data too short for string data at offset %d", r.pos)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// count reads an element count and rejects it if the remaining data cannot
// hold that many elements of at least elemSize bytes
func (r *reader) count(elemSize int) (uint32, error) {
	n, err := r.uint32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(elemSize) > uint64(len(r.data)-r.pos) {
		return 0, fmt.Errorf("element count %d exceeds remaining %d bytes at offset %d", n, len(r.data)-r.pos, r.pos)
	}
	return n, nil
}

func (r *reader) strings() ([]string, error) {
	count, err := r.count(4)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
