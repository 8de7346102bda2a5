package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// 运行状态
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Run 是一次 ship 调用
type Run struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	NodeID string `gorm:"index;type:varchar(255)"`
	TaskID string `gorm:"type:varchar(128)"`
	// Destination 是 Tube 的描述 (file://..., broker://...)
	Destination string `gorm:"type:varchar(512)"`
	Status      string `gorm:"index;type:varchar(16)"`

	Files int
	Bytes int64

	ManifestName string `gorm:"type:varchar(512)"`
	ManifestHash string `gorm:"type:varchar(64)"`
	// Manifest 保存清单内容 (Header 列表)
	Manifest datatypes.JSON

	Error string `gorm:"type:text"`

	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time

	Shipments []Shipment `gorm:"foreignKey:RunID"`
}

// Shipment 是运行中发送成功的一个对象
type Shipment struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_run_file"`
	// Filename 是 Header 中的文件名 (带压缩后缀)
	Filename string `gorm:"type:varchar(4096);not null;uniqueIndex:idx_run_file"`
	Source   string `gorm:"type:varchar(4096)"`
	Type     string `gorm:"type:varchar(64)"`

	Compression  string `gorm:"type:varchar(16)"`
	Hash         string `gorm:"type:varchar(64)"`
	HashOriginal string `gorm:"type:varchar(64)"`
	Size         int64
	SizeOriginal int64

	CreatedAt time.Time
}
