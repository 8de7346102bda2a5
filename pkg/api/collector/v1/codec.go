package collectorv1

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName 是 gRPC content-subtype ("application/grpc+cbor")
const CodecName = "cbor"

// 确定性编码：相同的消息得到相同的字节
var encOptions = cbor.EncOptions{
	Sort:          cbor.SortCanonical,
	ShortestFloat: cbor.ShortestFloatNone,
	Time:          cbor.TimeUnix,
	TimeTag:       cbor.EncTagNone,
	IndefLength:   cbor.IndefLengthForbidden,
	BigIntConvert: cbor.BigIntConvertShortest,
}

// 限制容器大小，防止恶意消息耗尽内存
var decOptions = cbor.DecOptions{
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	TimeTag:          cbor.DecTagIgnored,
}

var (
	em cbor.EncMode
	dm cbor.DecMode
)

func init() {
	var err error
	if em, err = encOptions.EncMode(); err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	if dm, err = decOptions.DecMode(); err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
	encoding.RegisterCodec(Codec{})
}

// Codec 让 gRPC 用 CBOR 编解码消息
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) { return em.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return dm.Unmarshal(data, v) }

func (Codec) Name() string { return CodecName }
