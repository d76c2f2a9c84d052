/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/
package main

import "github.com/snapshotalyzer/shotty/pkg/cli"

func main() {
	cli.Execute()
}
