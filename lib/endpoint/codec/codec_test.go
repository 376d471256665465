package codec

import (
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() ICodec{
	"JSON":   NewJSONCodec,
	"GOB":    NewGOBCodec,
	"Binary": NewBinaryCodec,
}

// testRecords creates one record per supported type
func testRecords() []Record {
	return []Record{
		{Type: endpoint.TypeString, String: "bar"},
		{Type: endpoint.TypeString, String: "bin\x00ary"},
		{Type: endpoint.TypeHash, Hash: map[string]string{"a": "1", "b": "2"}},
		{Type: endpoint.TypeSortedSet, ZSet: []endpoint.Z{{Member: "a", Score: -1.5}, {Member: "b", Score: 2}}},
		{Type: endpoint.TypeSet, Set: []string{"z", "a", "m"}},
		{Type: endpoint.TypeList, List: []string{"x", "x", "y"}},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			for _, rec := range testRecords() {
				blob, err := Marshal(c, rec)
				require.NoError(t, err)

				got, err := Unmarshal(c, blob)
				require.NoError(t, err)
				assert.Equal(t, rec, got)
			}
		})
	}
}

func TestUnmarshalRejectsOtherCodec(t *testing.T) {
	blob, err := Marshal(NewJSONCodec(), Record{Type: endpoint.TypeString, String: "x"})
	require.NoError(t, err)

	_, err = Unmarshal(NewBinaryCodec(), blob)
	assert.ErrorIs(t, err, endpoint.ErrInvalidOperation)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			_, err := Unmarshal(c, []byte("not a blob"))
			assert.Error(t, err)

			_, err = Unmarshal(c, nil)
			assert.Error(t, err)
		})
	}
}

func TestBinaryDecodeTruncated(t *testing.T) {
	c := NewBinaryCodec()
	data, err := c.Encode(Record{Type: endpoint.TypeList, List: []string{"hello", "world"}})
	require.NoError(t, err)

	for i := 1; i < len(data); i++ {
		var r Record
		assert.Error(t, c.Decode(data[:i], &r), "prefix of length %d should not decode", i)
	}
}

func TestBinaryDecodeRejectsHugeCount(t *testing.T) {
	c := NewBinaryCodec()
	records := []Record{
		{Type: endpoint.TypeHash, Hash: map[string]string{}},
		{Type: endpoint.TypeSortedSet},
		{Type: endpoint.TypeSet},
		{Type: endpoint.TypeList},
	}
	for _, rec := range records {
		t.Run(string(rec.Type), func(t *testing.T) {
			blob, err := Marshal(c, rec)
			require.NoError(t, err)

			// the payload of an empty collection ends with its 4 byte count
			forged := append([]byte{}, blob[:len(blob)-4]...)
			forged = binary.BigEndian.AppendUint32(forged, 0x7fffffff)
			forged = append(forged, "short"...)

			_, err = Unmarshal(c, forged)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "exceeds remaining")
		})
	}
}

func TestBinaryEncodingIsDeterministic(t *testing.T) {
	c := NewBinaryCodec()
	rec := Record{Type: endpoint.TypeHash, Hash: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}}
	first, err := c.Encode(rec)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Encode(rec)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, endpoint.DumpFormat{Family: "kvcopy-gob", Version: 1}, Format(NewGOBCodec()))
	assert.True(t, Format(NewJSONCodec()).CanRestoreFrom(Format(NewJSONCodec())))
	assert.False(t, Format(NewJSONCodec()).CanRestoreFrom(Format(NewBinaryCodec())))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := ByName("xml")
	assert.Error(t, err)
}

func TestSortZSet(t *testing.T) {
	members := []endpoint.Z{{Member: "c", Score: 1}, {Member: "a", Score: 2}, {Member: "b", Score: 1}}
	SortZSet(members)
	assert.Equal(t, []endpoint.Z{{Member: "b", Score: 1}, {Member: "c", Score: 1}, {Member: "a", Score: 2}}, members)
}
