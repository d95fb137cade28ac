// Package svgx flattens SVG documents into primitive shape records and
// rebuilds review SVGs from them.
//
// Flattening resolves transforms, inherited stroke style, and use
// references, then reduces every drawable to rects, circles, ellipses,
// and text positions in viewport pixel space. Stroked line work becomes
// rotated rects of the effective stroke width, which is the form the
// downstream environment consumes.
package svgx
