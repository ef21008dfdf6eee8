// Package ui builds selectable keyboards and renders menus, either in one
// send or as an animated sequence of in-place edits.
package ui

import (
	"fmt"
	"strings"
)

// Button is one selectable keyboard entry
type Button struct {
	Label string
	Data  string // encoded callback payload
}

// Keyboard is an ordered grid of buttons, one menu item per row
type Keyboard struct {
	Rows [][]Button
}

// Empty reports whether the keyboard has no rows
func (k Keyboard) Empty() bool {
	return len(k.Rows) == 0
}

// Spec describes a menu keyboard before it is built
type Spec struct {
	Items    []Button
	Numbered bool   // prefix labels with their position
	BackData string // callback payload for the back row, empty to omit
	MenuData string // callback payload for the home row, empty to omit
}

// Build assembles a keyboard: one row per item in order, then a navigation
// row holding back and/or home per the state machine's transition metadata.
func Build(spec Spec) Keyboard {
	var kb Keyboard

	for i, item := range spec.Items {
		label := item.Label
		if spec.Numbered {
			label = fmt.Sprintf("%d. %s", i+1, label)
		}
		kb.Rows = append(kb.Rows, []Button{{Label: label, Data: item.Data}})
	}

	var nav []Button
	if spec.BackData != "" {
		nav = append(nav, Button{Label: "⬅️ Back", Data: spec.BackData})
	}
	if spec.MenuData != "" {
		nav = append(nav, Button{Label: "🏠 Menu", Data: spec.MenuData})
	}
	if len(nav) > 0 {
		kb.Rows = append(kb.Rows, nav)
	}

	return kb
}

// Label turns a catalog segment name into a display label
func Label(segment string) string {
	return strings.ReplaceAll(segment, "_", " ")
}
