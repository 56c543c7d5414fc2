package tray

const iconSize = 22

// iconData is one entry of the SNI pixmap array (iiay).
type iconData struct {
	Width  int32
	Height int32
	Data   []byte
}

var pixmaps = map[State][]byte{
	StateFree:  drawDoor(StateFree.color()),
	StateBusy:  drawDoor(StateBusy.color()),
	StateStale: drawDoor(StateStale.color()),
}

func iconPixmap(s State) []iconData {
	px, ok := pixmaps[s]
	if !ok {
		px = pixmaps[StateStale]
	}
	return []iconData{{Width: iconSize, Height: iconSize, Data: px}}
}

// drawDoor renders a door in a frame, the panel filled with color.
// Pixels are ARGB in network byte order.
func drawDoor(color uint32) []byte {
	px := make([]byte, iconSize*iconSize*4)

	set := func(x, y int, argb uint32) {
		if x < 0 || x >= iconSize || y < 0 || y >= iconSize {
			return
		}
		i := (y*iconSize + x) * 4
		px[i] = byte(argb >> 24)
		px[i+1] = byte(argb >> 16)
		px[i+2] = byte(argb >> 8)
		px[i+3] = byte(argb)
	}
	fill := func(x1, y1, x2, y2 int, argb uint32) {
		for y := y1; y <= y2; y++ {
			for x := x1; x <= x2; x++ {
				set(x, y, argb)
			}
		}
	}

	const (
		frame = 0xFF3D3D3D
		floor = 0xFF5A5A5A
		knob  = 0xFFF5F5F5
	)

	// Frame.
	fill(4, 1, 17, 20, frame)
	// Panel.
	fill(6, 3, 15, 19, color)
	// Recessed panels on the door.
	shade := color&0xFF000000 | (color&0x00FEFEFE)>>1
	fill(8, 5, 13, 9, shade)
	fill(8, 12, 13, 17, shade)
	// Knob.
	fill(13, 10, 14, 11, knob)
	// Threshold.
	fill(2, 20, 19, 21, floor)

	return px
}
