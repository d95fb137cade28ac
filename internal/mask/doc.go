// Package mask extracts binary occupancy grids from rendered board
// images and exports them as the observation strings a dispensing
// training environment consumes. It also answers reachability queries
// over a grid so paste pads can be checked for mutual connectivity.
package mask
