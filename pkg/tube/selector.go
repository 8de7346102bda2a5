package tube

import "math/rand/v2"

// Selector 从服务器池中随机挑选，每个服务器在一次打开中最多被尝试一次
//
// 实现是按需进行的部分 Fisher–Yates 洗牌：
// 第 k 次调用从剩下的 n-k 个服务器里等概率选一个，换到位置 k。
type Selector struct {
	servers []string
	next    int
	rng     *rand.Rand
}

// NewSelector 复制 servers；rng 为 nil 时使用进程级全局随机源
func NewSelector(servers []string, rng *rand.Rand) *Selector {
	return &Selector{
		servers: append([]string(nil), servers...),
		rng:     rng,
	}
}

// Next 返回下一个候选；池耗尽时返回 false
func (s *Selector) Next() (string, bool) {
	remaining := len(s.servers) - s.next
	if remaining <= 0 {
		return "", false
	}
	i := s.next + s.intN(remaining)
	s.servers[s.next], s.servers[i] = s.servers[i], s.servers[s.next]
	host := s.servers[s.next]
	s.next++
	return host, true
}

// Remaining 返回还没有尝试过的服务器数量
func (s *Selector) Remaining() int { return len(s.servers) - s.next }

func (s *Selector) intN(n int) int {
	if s.rng != nil {
		return s.rng.IntN(n)
	}
	return rand.IntN(n)
}
