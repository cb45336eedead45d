package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/wlsync/internal/web"
)

var (
	_ list.Item = titleItem{}
)

// titleItem wraps [web.TitleItem] to implement [list.Item].
type titleItem struct {
	item web.TitleItem
}

func (i titleItem) FilterValue() string { return i.item.Name }

func (i titleItem) Title() string {
	if i.item.Name == "" {
		return i.item.Key
	}
	return i.item.Name
}

func (i titleItem) Description() string {
	var parts []string
	if i.item.OriginalName != "" && i.item.OriginalName != i.item.Name {
		parts = append(parts, i.item.OriginalName)
	}
	if i.item.Type != "" {
		parts = append(parts, string(i.item.Type))
	}
	if i.item.Year != 0 {
		parts = append(parts, strconv.Itoa(i.item.Year))
	}
	if i.item.Link != "" {
		parts = append(parts, i.item.Link)
	}
	if len(parts) == 0 {
		return i.item.Key
	}
	return strings.Join(parts, " • ")
}

func titleItems(items []web.TitleItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = titleItem{item: it}
	}
	return out
}

func listTitle(bucket string, n int) string {
	return fmt.Sprintf("%s (%d)", bucket, n)
}
