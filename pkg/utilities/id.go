package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out store-assigned record ids. A single snowflake node
// must be shared by every caller, otherwise two nodes with the same id would
// restart the sequence and collide within one millisecond.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGeneratorFromEnv builds a generator using the node ID from the
// environment variable SNOWFLAKE_NODE, defaulting to node 1.
func NewIDGeneratorFromEnv() *IDGenerator {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return NewIDGenerator(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return NewIDGenerator(1)
	}
	return NewIDGenerator(nodeID)
}

// NewIDGenerator builds a generator for the provided node ID.
// If the node cannot be initialized, the generator falls back to KSUID strings.
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

// Next returns a new unique id.
func (g *IDGenerator) Next() string {
	if g == nil || g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}
