// Package main provides the entry point for the configs-api server.
//
// @title        configs-api
// @version      1.0
// @description  Stores named JSON configurations and searches them by nested metadata values.
// @license.name Apache 2.0
// @license.url  http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath     /
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
