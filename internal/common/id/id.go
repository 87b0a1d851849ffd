// Package id generates sortable unique identifiers for tracked
// entities.
package id

import (
	"math/rand"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

func New() string {
	once.Do(func() {
		n, err := snowflake.NewNode(rand.Int63n(1024))
		if err != nil {
			panic(err)
		}
		node = n
	})
	return node.Generate().String()
}
