// Package bz 存放跨领域的业务常量
package bz

// 唯一 ID 前缀
const (
	IDPrefixFeed = "fd"
)
