// Package geometry discovers the monitor layout and computes the spanned
// output rectangle and the render sizes handed to Gamescope.
//
// Coordinates are Hyprland layout coordinates: a monitor's rectangle is its
// mode size divided by its scale, rotated by its transform, at its layout
// position. The span is the bounding box of every enabled monitor.
package geometry
