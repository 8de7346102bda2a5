package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoover/pkg/core"
	"hoover/pkg/manifest"
	"hoover/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRunNotFound = errors.New("run not found")

// Outcome 是一次运行结束时的汇总
type Outcome struct {
	Files        int
	Bytes        int64
	ManifestName string
	ManifestHash types.Hash
	Headers      []core.Header
	Err          error
}

// Repository 封装所有对数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// StartRun 插入一条 running 状态的记录
func (r *Repository) StartRun(ctx context.Context, run *Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := r.db.GetConn().WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// RecordShipment 记录一个发送成功的对象
// obj 可以已经 Release：只读取摘要和大小
// 同一次运行中重复的文件名只记录第一次 (幂等写入)
func (r *Repository) RecordShipment(ctx context.Context, runID, source string, h core.Header, obj *core.DataObject) error {
	s := Shipment{
		RunID:       runID,
		Filename:    h.Filename,
		Source:      source,
		Type:        h.Type,
		Compression: h.Compression,
		Hash:        string(h.Hash),
		Size:        h.Size,
	}
	if obj != nil {
		s.HashOriginal = string(obj.HashOriginal)
		s.SizeOriginal = obj.SizeOriginal
	}

	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "filename"}},
			DoNothing: true,
		}).
		Create(&s).Error
	if err != nil {
		return fmt.Errorf("failed to record shipment: %w", err)
	}
	return nil
}

// FinishRun 写入结果；Outcome.Err 非空时状态为 failed
func (r *Repository) FinishRun(ctx context.Context, runID string, out Outcome) error {
	// 与发出的清单逐字节一致，空运行为 "[]"
	manifestJSON := manifest.Build(out.Headers)

	status := StatusFinished
	errText := ""
	if out.Err != nil {
		status = StatusFailed
		errText = out.Err.Error()
	}
	now := time.Now().UTC()

	result := r.db.GetConn().WithContext(ctx).
		Model(&Run{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":        status,
			"files":         out.Files,
			"bytes":         out.Bytes,
			"manifest_name": out.ManifestName,
			"manifest_hash": string(out.ManifestHash),
			"manifest":      datatypes.JSON(manifestJSON),
			"error":         errText,
			"finished_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListRuns 按开始时间倒序返回最近的运行
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := r.db.GetConn().WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// GetRun 返回一次运行及其全部发送记录
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.GetConn().WithContext(ctx).
		Preload("Shipments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
