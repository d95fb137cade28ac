// Package job loads KiCad .gbrjob files and classifies the Gerber layers
// they describe into the categories and sides the renderer stacks.
package job
