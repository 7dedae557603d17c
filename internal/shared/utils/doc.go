// Package utils holds small helpers shared by the HTTP and live surfaces.
package utils
