//go:build !nogomlx

package main

// Include GoMLX backend.

import (
	_ "github.com/gomlx/gomlx/backends/simplego"
)
