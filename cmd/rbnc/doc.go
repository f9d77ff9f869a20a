// Package main provides the rbnc command. It generates random ensemble structures
// and synthetic data, counts the sufficient statistics of every ensemble member over
// partitioned record files, and merges and inspects the resulting table files.
package main
