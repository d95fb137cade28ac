// Package render turns parsed Gerber layers into SVG and raster images.
//
// Layers render bottom-to-top in the order given, each painted in a
// single color. Raster output is RGBA with a transparent background so
// callers can composite or fill it afterwards.
package render
