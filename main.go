package main

import "github.com/caedis/babylonia-terminal/cmd"

func main() {
	cmd.Execute()
}
