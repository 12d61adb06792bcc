package services

type cell struct{ X, Y int }

// nextSpiralCell walks an Ulam spiral outward from the center of the
// [0, size] grid and returns the first in-bounds cell not in occupied.
func nextSpiralCell(occupied map[cell]bool, size int) (cell, bool) {
	center := cell{X: size / 2, Y: size / 2}
	side := 2*size + 1
	maxSteps := side * side

	x, y := 0, 0
	dx, dy := 0, -1
	for i := 0; i < maxSteps; i++ {
		c := cell{X: center.X + x, Y: center.Y + y}
		if inGrid(c, size) && !occupied[c] {
			return c, true
		}
		if x == y || (x < 0 && x == -y) || (x > 0 && x == 1-y) {
			dx, dy = -dy, dx
		}
		x += dx
		y += dy
	}
	return cell{}, false
}

func inGrid(c cell, size int) bool {
	return c.X >= 0 && c.X <= size && c.Y >= 0 && c.Y <= size
}
