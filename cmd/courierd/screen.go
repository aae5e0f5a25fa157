package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kataras/tablewriter"
	"github.com/lensesio/tableprinter"

	"github.com/couriernet/courier"
)

type conversationRow struct {
	ID           uint64 `header:"conv"`
	Participants string `header:"participants"`
	LastMessage  uint64 `header:"last msg"`
	Age          string `header:"created"`
}

func printStatsForever(core *courier.Core, refreshRate int) {
	for {
		printStats(core)
		time.Sleep(time.Duration(refreshRate) * time.Second)
	}
}

func printStats(core *courier.Core) {
	stats := core.Snapshot()
	fmt.Printf("profiles=%d messages=%d conversations=%d blocks=%d follows=%d reports=%d events=%d vault=%d\n",
		stats.Profiles, stats.Messages, stats.Conversations, stats.Blocks,
		stats.Follows, stats.Reports, stats.Events, stats.VaultBalance)

	conversations := core.Store().RecentConversations(15)
	if len(conversations) == 0 {
		return
	}

	now := time.Now().Unix()
	rows := make([]conversationRow, 0, len(conversations))
	for _, c := range conversations {
		rows = append(rows, conversationRow{
			ID:           uint64(c.ID),
			Participants: fmt.Sprintf("%s ↔ %s", c.ParticipantA, c.ParticipantB),
			LastMessage:  uint64(c.LastMessageID),
			Age:          fmt.Sprintf("%ds ago", now-c.CreatedAt),
		})
	}

	printer := tableprinter.New(os.Stdout)
	printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
	printer.CenterSeparator = "│"
	printer.ColumnSeparator = "│"
	printer.RowSeparator = "─"
	printer.HeaderBgColor = tablewriter.BgBlackColor
	printer.HeaderFgColor = tablewriter.FgGreenColor
	printer.Print(rows)
}
