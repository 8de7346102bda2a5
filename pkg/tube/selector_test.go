package tube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectorVisitsEachServerOnce(t *testing.T) {
	servers := []string{"a", "b", "c", "d", "e"}
	sel := NewSelector(servers, seeded(7))

	seen := map[string]int{}
	for i := 0; i < len(servers); i++ {
		host, ok := sel.Next()
		assert.True(t, ok)
		seen[host]++
	}
	assert.Len(t, seen, len(servers))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}

	// 第 K+1 次调用报告耗尽
	_, ok := sel.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, sel.Remaining())
}

func TestSelectorDoesNotMutateInput(t *testing.T) {
	servers := []string{"a", "b", "c"}
	sel := NewSelector(servers, seeded(1))
	for {
		if _, ok := sel.Next(); !ok {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, servers)
}

func TestSelectorSeededIsDeterministic(t *testing.T) {
	order := func() []string {
		sel := NewSelector([]string{"a", "b", "c", "d"}, seeded(42))
		var out []string
		for {
			h, ok := sel.Next()
			if !ok {
				return out
			}
			out = append(out, h)
		}
	}
	assert.Equal(t, order(), order())
}

func TestSelectorEmptyAndGlobalSource(t *testing.T) {
	_, ok := NewSelector(nil, nil).Next()
	assert.False(t, ok)

	h, ok := NewSelector([]string{"only"}, nil).Next()
	assert.True(t, ok)
	assert.Equal(t, "only", h)
}

func TestSelectorCoversAllFirstChoices(t *testing.T) {
	// 第一次选择必须能落到任意一个服务器上
	rng := seeded(3)
	first := map[string]bool{}
	for i := 0; i < 200; i++ {
		h, _ := NewSelector([]string{"a", "b", "c"}, rng).Next()
		first[h] = true
	}
	assert.Len(t, first, 3)
}
