// Package layoutfmt renders a heap block walk as a human-readable table.
// It is used by cmd/heapstat.
package layoutfmt

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/FardinIqbal/dynamic-memory-allocator"
)

// Render writes a table of blocks (offset, size, payload, flags) to w.
func Render(w io.Writer, blocks []allocator.BlockInfo) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"offset", "block size", "payload", "allocated", "quick-list"})

	for _, b := range blocks {
		table.Append([]string{
			fmt.Sprintf("0x%x", b.Offset),
			fmt.Sprintf("%d", b.BlockSize),
			fmt.Sprintf("%d", b.PayloadSize),
			fmt.Sprintf("%v", b.Allocated),
			fmt.Sprintf("%v", b.InQuickList),
		})
	}

	table.Render()
}

// Summarize produces a one-line totals string: block count, allocated
// count, bytes live.
func Summarize(blocks []allocator.BlockInfo) string {
	var allocated, free int
	var liveBytes uint64
	for _, b := range blocks {
		if b.Allocated {
			allocated++
			liveBytes += uint64(b.PayloadSize)
		} else {
			free++
		}
	}
	return fmt.Sprintf("blocks=%d allocated=%d free=%d live_payload=%d", len(blocks), allocated, free, liveBytes)
}
