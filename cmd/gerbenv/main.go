// Package main provides the entry point for the gerbenv CLI.
//
// gerbenv converts Gerber fabrication exports into the image and
// observation artifacts consumed by a dispensing training environment.
//
// Usage:
//
//	gerbenv convert <project-dir>
//	gerbenv convert --batch 4 board1/ board2/ board3/
//
// See --help for all available options.
package main

// main is the entry point for gerbenv.
func main() {
	Execute()
}
