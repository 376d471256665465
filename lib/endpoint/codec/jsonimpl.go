package codec

import "encoding/json"

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Name() string { return "json" }

func (j jsonCodecImpl) Version() int { return 1 }

func (j jsonCodecImpl) Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func (j jsonCodecImpl) Decode(b []byte, r *Record) error {
	return json.Unmarshal(b, r)
}
