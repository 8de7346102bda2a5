package codec

import "errors"

var (
	// ErrSourceUnavailable 读取源数据失败 (包括无法获取文件大小)
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrCompressionFailure 压缩器在任意一步报错
	ErrCompressionFailure = errors.New("compression failure")
	// ErrOutOfMemory 输出超过了配置的内存上限
	ErrOutOfMemory = errors.New("out of memory")
	// ErrUnknownAlgorithm 配置了不支持的哈希或压缩算法
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)
