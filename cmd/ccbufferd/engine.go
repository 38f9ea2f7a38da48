package main

import (
	"github.com/grafana/ccbuffer/internal/ccrdt"
	"github.com/grafana/ccbuffer/internal/compaction"
	"github.com/grafana/ccbuffer/internal/txn"
)

// compactionEngine adapts the package-level compaction.Compact function
// and a fixed registry to the buffervnode.Engine interface.
type compactionEngine struct {
	registry *ccrdt.Registry
}

func (e compactionEngine) Compact(input []txn.Txn) []txn.Txn {
	return compaction.Compact(e.registry, input)
}
