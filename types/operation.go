package types

import (
	"fmt"
	"sort"

	"github.com/mitchellh/hashstructure/v2"
)

// The tool kinds an operation can carry. These values are part of the wire
// protocol and of the persisted history, do not change them.
const (
	ToolBrush     = "brush"
	ToolLine      = "line"
	ToolRectangle = "rectangle"
	ToolEllipse   = "ellipse"
	ToolText      = "text"
	ToolEraser    = "eraser"
)

// Operation is one persisted drawing action. Which geometry fields are
// meaningful depends on Tool; unused fields stay at their zero value. The
// server never interprets the geometry, it only relays and stores it - the
// exceptions are Tool (erase ordering) and Timestamp (reconciliation order).
type Operation struct {
	Id   string `json:"id,omitempty" mapstructure:"id" hash:"ignore"`
	Tool string `json:"tool" mapstructure:"tool"`

	// stroke / line / stroke-erase geometry
	StartX float64 `json:"startX" mapstructure:"startX"`
	StartY float64 `json:"startY" mapstructure:"startY"`
	EndX   float64 `json:"endX" mapstructure:"endX"`
	EndY   float64 `json:"endY" mapstructure:"endY"`

	// shapes
	CenterX float64 `json:"centerX,omitempty" mapstructure:"centerX"`
	CenterY float64 `json:"centerY,omitempty" mapstructure:"centerY"`
	Radius  float64 `json:"radius,omitempty" mapstructure:"radius"`
	Width   float64 `json:"width,omitempty" mapstructure:"width"`
	Height  float64 `json:"height,omitempty" mapstructure:"height"`

	// text
	Text     string  `json:"text,omitempty" mapstructure:"text"`
	FontSize float64 `json:"fontSize,omitempty" mapstructure:"fontSize"`
	X        float64 `json:"x,omitempty" mapstructure:"x"`
	Y        float64 `json:"y,omitempty" mapstructure:"y"`

	LineWidth float64 `json:"lineWidth,omitempty" mapstructure:"lineWidth"`
	Size      float64 `json:"size,omitempty" mapstructure:"size"` // eraser spot diameter
	Color     string  `json:"color,omitempty" mapstructure:"color"`
	Opacity   float64 `json:"opacity,omitempty" mapstructure:"opacity"`

	// milliseconds since epoch, assigned by the server when the client did not
	Timestamp int64 `json:"timestamp,omitempty" mapstructure:"timestamp" hash:"ignore"`
}

func (o Operation) IsErase() bool {
	return o.Tool == ToolEraser
}

// CreateId computes a stable id over the operation content (timestamp and id
// itself excluded, see the hash:"ignore" tags).
func (o *Operation) CreateId() error {
	h, err := hashstructure.Hash(o, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	o.Id = fmt.Sprintf("%016x", h)
	return nil
}

// ReplayOrder returns the operations in the order a consumer must apply them
// when replacing its local state with a full history: stable-sorted by
// timestamp, with all erase operations moved after all non-erase operations.
// Erasing after drawing keeps erasure visually stable no matter how the
// timestamps of concurrent writers interleave in the stored log.
func ReplayOrder(ops []Operation) []Operation {
	ordered := make([]Operation, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].IsErase() && ordered[j].IsErase()
	})
	return ordered
}
