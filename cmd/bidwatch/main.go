package main

import "github.com/vietddude/bidwatch/internal/cli"

func main() {
	cli.Execute()
}
