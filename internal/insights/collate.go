package insights

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator 名称排序比较器
// 采用 Unicode 一级强度排序（忽略大小写、重音与宽度），"á"、"A"、"a" 排在一起
type Collator struct {
	c *collate.Collator
}

// NewCollator 创建名称比较器
func NewCollator() *Collator {
	return &Collator{c: collate.New(language.Und, collate.Loose)}
}

// Compare 一级强度比较；相等时退回到原始字节序保证全序
func (c *Collator) Compare(a, b string) int {
	if r := c.c.CompareString(a, b); r != 0 {
		return r
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less 按一级强度判断 a < b
func (c *Collator) Less(a, b string) bool {
	return c.Compare(a, b) < 0
}
