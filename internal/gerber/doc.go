// Package gerber implements the RS-274X subset used by KiCad fabrication
// output: FS/MO headers, aperture definitions, linear and circular
// interpolation (G01/G02/G03 with I/J center offsets), D01/D02/D03
// operations, and G36/G37 regions.
//
// The package covers three operations the conversion pipeline needs:
// parsing a layer into draw primitives, converting an outline layer into
// a filled region file, and filtering draws by aperture thickness.
//
// Coordinates are normalized to millimeters while parsing; the original
// unit and coordinate format are preserved so rewritten files stay
// compatible with the rest of the fabrication data set.
package gerber
