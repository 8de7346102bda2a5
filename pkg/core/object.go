package core

import "hoover/pkg/types"

// DataObject (HDO) 是一次传输的最小单元
// 它由 codec 管道从字节流生成，并独占自己的 Payload
// Tube 只读取它，不获取所有权
type DataObject struct {
	// Payload 是最终要传输的字节 (可能已压缩)
	Payload []byte
	// Size 是 Payload 的长度
	Size int64
	// SizeOriginal 是变换前源数据的长度
	SizeOriginal int64

	// Hash 永远对应 Payload (传输字节)
	Hash types.Hash
	// HashOriginal 永远对应变换前的源字节
	HashOriginal types.Hash

	// Compression 标识对 Payload 施加的变换 ("gz", "zst", ...)，未压缩时为空
	Compression string
}

// Compressed 报告 Payload 是否经过了变换
func (o *DataObject) Compressed() bool { return o.Compression != "" }

// Bytes 返回 Payload 的只读视图
func (o *DataObject) Bytes() []byte {
	if o == nil {
		return nil
	}
	return o.Payload
}

// Release 释放 Payload 缓冲区
// 元数据 (Hash, Size) 保留，Header 可以在 Release 之后继续构建
func (o *DataObject) Release() {
	if o == nil {
		return
	}
	o.Payload = nil
}
