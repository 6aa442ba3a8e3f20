package entity

import (
	"image/color"

	"xray-review/internal/domain/geometry"
)

// Tool инструмент разметки.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Valid true для известных инструментов.
func (t Tool) Valid() bool {
	return t == ToolPen || t == ToolEraser
}

// Stroke один мазок в координатах буфера натурального размера.
type Stroke struct {
	Tool   Tool
	Width  float64
	Color  color.RGBA
	Points []geometry.Point
}
