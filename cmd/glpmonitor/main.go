package main

import "github.com/Thisisily/glp-monitor/internal/cli"

func main() {
	cli.Execute()
}
