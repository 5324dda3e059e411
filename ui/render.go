// Package ui renders snapshots of the conversation store to a terminal.
// It observes the engine and never modifies domain state.
package ui

import (
	"fmt"
	"io"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"chat-sync/domain"
)

type Renderer struct {
	out     io.Writer
	me      domain.UserID
	colours bool
}

func NewRenderer(out io.Writer, me domain.UserID, colours bool) *Renderer {
	return &Renderer{out: out, me: me, colours: colours}
}

// RenderRooms prints the room list with previews.
func (r *Renderer) RenderRooms(rooms []domain.Room) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"ID", "Kind", "Name", "Last message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, room := range rooms {
		table.Append([]string{
			fmt.Sprintf("%d", room.ID),
			string(room.Kind),
			room.Name,
			room.LastMessage,
		})
	}
	table.Render()
}

// RenderView prints the ordered timeline. Date separators group messages
// by day; pending and read markers follow the sender's line.
func (r *Renderer) RenderView(roomName string, view []domain.Message) {
	fmt.Fprintf(r.out, "=== %s ===\n", roomName)
	lastDay := ""
	for _, m := range view {
		day := m.CreatedAt.Format("2006/01/02")
		if day != lastDay {
			fmt.Fprintf(r.out, "---- %s ----\n", day)
			lastDay = day
		}
		fmt.Fprintln(r.out, r.line(m))
	}
}

func (r *Renderer) line(m domain.Message) string {
	name := m.SenderName
	if m.SenderID == r.me {
		name = "you"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Format("15:04"), name, m.Content)
	for _, att := range m.Attachments {
		line += fmt.Sprintf(" [attachment: %s]", att.FileName)
	}
	if m.Pending {
		line += " (pending)"
	}
	if m.SenderID == r.me && m.ReadByOthers {
		line += " ✓read"
	}
	if !r.colours {
		return line
	}
	if m.Pending {
		return color.New(color.FgYellow).Render(line)
	}
	if m.SenderID == r.me {
		return color.New(color.FgGreen).Render(line)
	}
	return line
}
