package core

import (
	"log/slog"
	"os"
	"strconv"
)

// 默认从 Slurm 的环境变量中读取作业标识
const (
	DefaultJobIDVar  = "SLURM_JOB_ID"
	DefaultTaskIDVar = "SLURM_STEP_ID"
)

// IdentityConfig 决定从哪两个环境变量推导 TaskID
type IdentityConfig struct {
	JobIDVar  string `mapstructure:"job_id_var"`
	TaskIDVar string `mapstructure:"task_id_var"`
}

// Identity 描述“谁”产生了这批数据
type Identity struct {
	NodeID string
	TaskID string
}

// EnvLookup 与 os.LookupEnv 签名一致，方便测试注入
type EnvLookup func(key string) (string, bool)

// DetectIdentity 从当前进程环境中解析 Identity
func DetectIdentity(cfg IdentityConfig) Identity {
	return Identity{
		NodeID: NodeID(os.Hostname),
		TaskID: TaskID(cfg, os.LookupEnv, os.Getpid()),
	}
}

// NodeID 获取本机标识
// 获取失败不是致命错误：返回空字符串并记录警告
func NodeID(hostname func() (string, error)) string {
	name, err := hostname()
	if err != nil {
		slog.Warn("failed to resolve node id", slog.String("err", err.Error()))
		return ""
	}
	return name
}

// TaskID 按优先级推导任务标识:
//
//	job 与 task 都没有 -> pid
//	只有 task          -> "0-{task}"
//	只有 job           -> "{job}-0"
//	都有               -> "{job}-{task}"
func TaskID(cfg IdentityConfig, lookup EnvLookup, pid int) string {
	jobVar, taskVar := cfg.JobIDVar, cfg.TaskIDVar
	if jobVar == "" {
		jobVar = DefaultJobIDVar
	}
	if taskVar == "" {
		taskVar = DefaultTaskIDVar
	}

	job, hasJob := lookup(jobVar)
	task, hasTask := lookup(taskVar)

	switch {
	case !hasJob && !hasTask:
		return strconv.Itoa(pid)
	case !hasJob:
		return "0-" + task
	case !hasTask:
		return job + "-0"
	default:
		return job + "-" + task
	}
}
